package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"text/tabwriter"
)

// RouteInfo is one registered method and path.
type RouteInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// CollectRoutes lists the router's routes sorted by path, then method.
func CollectRoutes(router Router) []RouteInfo {
	var routes []RouteInfo
	_ = router.Walk(func(method, path string, _ http.Handler) error {
		routes = append(routes, RouteInfo{Method: method, Path: path})
		return nil
	})
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	return routes
}

// FilterRoutes keeps routes matching method (case-insensitive) and
// containing pathPart. Empty arguments match everything.
func FilterRoutes(routes []RouteInfo, method, pathPart string) []RouteInfo {
	if method == "" && pathPart == "" {
		return routes
	}
	out := make([]RouteInfo, 0, len(routes))
	for _, r := range routes {
		if method != "" && !strings.EqualFold(r.Method, method) {
			continue
		}
		if pathPart != "" && !strings.Contains(r.Path, pathPart) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// PrintRoutes writes routes as "table" (default), "json" or "simple".
func PrintRoutes(w io.Writer, routes []RouteInfo, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(routes)
	case "simple":
		for _, r := range routes {
			if _, err := fmt.Fprintf(w, "%-7s %s\n", r.Method, r.Path); err != nil {
				return err
			}
		}
		return nil
	default:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "METHOD\tPATH")
		for _, r := range routes {
			fmt.Fprintf(tw, "%s\t%s\n", r.Method, r.Path)
		}
		fmt.Fprintf(tw, "\n%d routes\n", len(routes))
		return tw.Flush()
	}
}
