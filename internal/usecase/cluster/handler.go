package cluster

import (
	"context"

	"storywire/internal/domain/entity"
)

// ArticleHandler feeds article changes into the Engine.
type ArticleHandler struct {
	Engine *Engine
}

// Handle implements changefeed.Handler for articles.
func (h ArticleHandler) Handle(ctx context.Context, art *entity.Article) error {
	if art.Processed {
		return nil
	}
	_, err := h.Engine.ProcessArticle(ctx, art.ID)
	return err
}
