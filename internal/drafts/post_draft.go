package drafts

import (
	"context"
	"time"

	"github.com/socialpost/postctl/internal/models"
)

// PostDraftKey is the store key under which the composer keeps its current draft.
const PostDraftKey string = "post"

// PostDraft is a saved, unpublished composition.
type PostDraft struct {
	ID          string             `json:"id"`
	Composition models.Composition `json:"composition"`
	Status      models.PostStatus  `json:"status"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

func (p PostDraft) Validate() []error {
	return p.Composition.Validate()
}

func (p PostDraft) ToPostData() models.PostData {
	return p.Composition.PostData()
}

// SavePost stores the composition as the user's post draft. An existing draft keeps its ID.
func (s *Store) SavePost(ctx context.Context, userID int, composition models.Composition) (PostDraft, error) {
	draft, err := s.LoadPost(ctx, userID)
	if err != nil && !isNotFound(err) {
		return PostDraft{}, err
	}
	if draft.ID == "" {
		draft.ID, err = s.ids.ID()
		if err != nil {
			return PostDraft{}, err
		}
	}
	draft.Composition = composition
	draft.Status = models.PostStatusDraft
	if composition.IsScheduled {
		draft.Status = models.PostStatusScheduled
	}
	draft.UpdatedAt = s.now()
	return draft, s.Set(ctx, userID, PostDraftKey, draft)
}

func (s *Store) LoadPost(ctx context.Context, userID int) (PostDraft, error) {
	var draft PostDraft
	err := s.Get(ctx, userID, PostDraftKey, &draft)
	if err != nil {
		return PostDraft{}, err
	}
	return draft, nil
}

// DiscardPost removes the post draft, typically after it was published.
func (s *Store) DiscardPost(ctx context.Context, userID int) error {
	return s.Delete(ctx, userID, PostDraftKey)
}
