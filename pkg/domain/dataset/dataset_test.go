package dataset_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armorlens/api/pkg/domain/dataset"
	"github.com/armorlens/api/pkg/domain/rule"
	"github.com/armorlens/api/pkg/domain/shared"
)

func TestNewSource(t *testing.T) {
	tests := []struct {
		name     string
		kind     dataset.SourceKind
		location string
		wantErr  error
	}{
		{"sheet", dataset.SourceKindSheet, " https://docs.google.com/x ", nil},
		{"upload without name", dataset.SourceKindUpload, "", nil},
		{"object needs location", dataset.SourceKindObject, "  ", dataset.ErrLocationRequired},
		{"unknown kind", dataset.SourceKind("ftp"), "x", dataset.ErrInvalidSourceKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := dataset.NewSource(tt.kind, tt.location)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, src.Kind)
			assert.NotContains(t, src.Location, " ")
		})
	}
}

func TestSourceKind_Refreshable(t *testing.T) {
	assert.True(t, dataset.SourceKindSheet.Refreshable())
	assert.True(t, dataset.SourceKindObject.Refreshable())
	assert.False(t, dataset.SourceKindUpload.Refreshable())
}

func TestNew(t *testing.T) {
	src := dataset.Source{Kind: dataset.SourceKindUpload, Location: "rules.csv"}

	d, err := dataset.New(src, nil)
	require.NoError(t, err)
	assert.False(t, d.ID().IsZero())
	assert.NotNil(t, d.Rules())
	assert.Equal(t, 0, d.Len())
	assert.WithinDuration(t, time.Now(), d.LoadedAt(), time.Minute)

	other, err := dataset.New(src, []*rule.Rule{{ProjectName: "p", PolicyName: "q"}})
	require.NoError(t, err)
	assert.NotEqual(t, d.ID(), other.ID())
	assert.Equal(t, 1, other.Len())

	_, err = dataset.New(dataset.Source{Kind: "bogus"}, nil)
	assert.ErrorIs(t, err, dataset.ErrInvalidSourceKind)
}

func TestReconstitute(t *testing.T) {
	id := shared.NewID()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	d := dataset.Reconstitute(id, dataset.Source{Kind: dataset.SourceKindSheet, Location: "u"}, nil, at)

	assert.Equal(t, id, d.ID())
	assert.Equal(t, at, d.LoadedAt())
	assert.Equal(t, time.Hour, d.Age(at.Add(time.Hour)))
	assert.NotNil(t, d.Rules())
}

func TestErrors_WrapSharedSentinels(t *testing.T) {
	assert.True(t, shared.IsNotFound(dataset.ErrNoDataset))
	assert.True(t, shared.IsNotFound(dataset.ErrNoSnapshot))
	assert.True(t, shared.IsValidation(dataset.ErrInvalidSourceKind))
	assert.True(t, shared.IsValidation(dataset.ErrNotRefreshable))
}
