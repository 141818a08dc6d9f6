package release

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func initiated(t *testing.T, store *Store, id string) *models.Release {
	t.Helper()
	rel, err := store.Initiate(InitiateRequest{
		ReleaseID: id,
		PersonaID: "nova-drift",
		SongMeta:  models.SongMeta{Title: "Neon Tide"},
	})
	require.NoError(t, err)
	return rel
}

func TestStore_Initiate(t *testing.T) {
	store := newTestStore(t)

	rel := initiated(t, store, "rel-001")
	assert.Equal(t, config.ReleaseStatusPendingPreview, rel.Status)
	require.Len(t, rel.History, 1)
	assert.Equal(t, config.ReleaseStatusPendingPreview, rel.History[0].ToStatus)

	t.Run("survives a store restart", func(t *testing.T) {
		reopened, err := NewStore(store.dir)
		require.NoError(t, err)
		loaded, err := reopened.Get("rel-001")
		require.NoError(t, err)
		assert.Equal(t, "Neon Tide", loaded.SongMeta.Title)
	})

	t.Run("rejects duplicate IDs", func(t *testing.T) {
		_, err := store.Initiate(InitiateRequest{ReleaseID: "rel-001"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrReleaseExists)
	})

	t.Run("rejects empty IDs", func(t *testing.T) {
		_, err := store.Initiate(InitiateRequest{})
		require.Error(t, err)
	})
}

func TestStore_AdvanceTo_HappyPath(t *testing.T) {
	store := newTestStore(t)
	initiated(t, store, "rel-ship")

	steps := []config.ReleaseStatus{
		config.ReleaseStatusPreviewReady,
		config.ReleaseStatusPendingApproval,
		config.ReleaseStatusApproved,
		config.ReleaseStatusPendingUpload,
		config.ReleaseStatusUploaded,
	}
	for _, status := range steps {
		_, err := store.AdvanceTo("rel-ship", status, "")
		require.NoError(t, err, "advancing to %s", status)
	}

	rel, err := store.Get("rel-ship")
	require.NoError(t, err)
	assert.Equal(t, config.ReleaseStatusUploaded, rel.Status)

	// One initiation entry plus one entry per transition.
	require.Len(t, rel.History, len(steps)+1)
	for i, status := range steps {
		assert.Equal(t, status, rel.History[i+1].ToStatus)
		assert.Equal(t, rel.History[i].ToStatus, rel.History[i+1].FromStatus)
	}
}

func TestStore_AdvanceTo_IllegalEdges(t *testing.T) {
	tests := []struct {
		name string
		from []config.ReleaseStatus
		to   config.ReleaseStatus
	}{
		{
			name: "cannot skip preview",
			from: nil,
			to:   config.ReleaseStatusPendingApproval,
		},
		{
			name: "cannot approve before approval request",
			from: []config.ReleaseStatus{config.ReleaseStatusPreviewReady},
			to:   config.ReleaseStatusApproved,
		},
		{
			name: "cannot upload without approval",
			from: []config.ReleaseStatus{config.ReleaseStatusPreviewReady},
			to:   config.ReleaseStatusPendingUpload,
		},
		{
			name: "rejected is a sink",
			from: []config.ReleaseStatus{
				config.ReleaseStatusPreviewReady,
				config.ReleaseStatusPendingApproval,
				config.ReleaseStatusRejected,
			},
			to: config.ReleaseStatusApproved,
		},
		{
			name: "failed is a sink",
			from: []config.ReleaseStatus{config.ReleaseStatusFailed},
			to:   config.ReleaseStatusPreviewReady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			initiated(t, store, "rel-x")
			for _, status := range tt.from {
				_, err := store.AdvanceTo("rel-x", status, "")
				require.NoError(t, err)
			}
			before, err := store.Get("rel-x")
			require.NoError(t, err)

			_, err = store.AdvanceTo("rel-x", tt.to, "")
			require.Error(t, err)
			var ite *InvalidTransitionError
			require.ErrorAs(t, err, &ite)
			assert.Equal(t, before.Status, ite.From)

			// The rejected transition must not touch the document.
			after, err := store.Get("rel-x")
			require.NoError(t, err)
			assert.Equal(t, before.Status, after.Status)
			assert.Len(t, after.History, len(before.History))
		})
	}
}

func TestStore_AdvanceTo_FailureFromAnyState(t *testing.T) {
	store := newTestStore(t)
	initiated(t, store, "rel-doomed")
	_, err := store.AdvanceTo("rel-doomed", config.ReleaseStatusPreviewReady, "")
	require.NoError(t, err)

	rel, err := store.AdvanceTo("rel-doomed", config.ReleaseStatusFailed, "preview encoder crashed")
	require.NoError(t, err)
	assert.Equal(t, config.ReleaseStatusFailed, rel.Status)
	assert.Equal(t, "preview encoder crashed", rel.Error)
}

func TestStore_AdvanceTo_Options(t *testing.T) {
	store := newTestStore(t)
	initiated(t, store, "rel-opt")

	_, err := store.AdvanceTo("rel-opt", config.ReleaseStatusPreviewReady, "preview rendered",
		WithPreviewPath("/data/previews/rel-opt.mp4"),
		WithDetails(map[string]any{"duration_s": 42}),
	)
	require.NoError(t, err)

	rel, err := store.Get("rel-opt")
	require.NoError(t, err)
	assert.Equal(t, "/data/previews/rel-opt.mp4", rel.PreviewPath)
	last := rel.History[len(rel.History)-1]
	assert.Equal(t, "preview rendered", last.Notes)
	assert.EqualValues(t, 42, last.Details["duration_s"])
}

func TestStore_GetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get("nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReleaseNotFound)

	_, err = store.AdvanceTo("nope", config.ReleaseStatusPreviewReady, "")
	assert.ErrorIs(t, err, ErrReleaseNotFound)
}

func TestStore_ListIDs(t *testing.T) {
	store := newTestStore(t)
	initiated(t, store, "rel-b")
	initiated(t, store, "rel-a")

	ids, err := store.ListIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"rel-a", "rel-b"}, ids)
}

func TestStore_ConcurrentTransitions(t *testing.T) {
	store := newTestStore(t)
	initiated(t, store, "rel-race")

	// Many goroutines race the same legal edge; exactly one wins, the rest
	// observe an invalid transition, and the history gains exactly one entry.
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.AdvanceTo("rel-race", config.ReleaseStatusPreviewReady, "")
		}(i)
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			var ite *InvalidTransitionError
			assert.ErrorAs(t, err, &ite)
		}
	}
	assert.Equal(t, 1, won)

	rel, err := store.Get("rel-race")
	require.NoError(t, err)
	assert.Len(t, rel.History, 2)
}
