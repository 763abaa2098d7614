// Package search maintains a full-text index of message text, used to
// locate historical messages whose ids can then be deep-linked.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"

	"reef-chat/contract"
	"reef-chat/domain/event"
	"reef-chat/errors"
)

var _ contract.EventSink = (*Index)(nil)

// Index wraps a bluge writer. It is fed as a permanent fanout sink, so
// every stored text message becomes searchable and every deletion removes
// its document.
type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewIndex(writer *bluge.Writer, log *slog.Logger) *Index {
	return &Index{writer: writer, log: log}
}

// Consume indexes posted text messages and prunes removed ones. Media
// messages carry no searchable text and are skipped.
func (i *Index) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessagePosted:
		if evt.Message.Text == "" {
			return nil
		}
		doc := bluge.NewDocument(evt.Message.ID.String()).
			AddField(bluge.NewTextField("text", evt.Message.Text)).
			AddField(bluge.NewKeywordField("room", evt.Message.Room)).
			AddField(bluge.NewKeywordField("sender", evt.Message.SenderDisplayName))
		if err := i.writer.Update(doc.ID(), doc); err != nil {
			return fmt.Errorf("%w: indexing message %s: %v", errors.ErrStorage, evt.Message.ID, err)
		}
	case event.MessageRemoved:
		if err := i.writer.Delete(bluge.Identifier(evt.ID.String())); err != nil {
			return fmt.Errorf("%w: deleting document %s: %v", errors.ErrStorage, evt.ID, err)
		}
	}
	return nil
}

// Search returns the ids of the best-matching text messages of one room.
func (i *Index) Search(ctx context.Context, roomID, query string, limit int) ([]uuid.UUID, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	defer func() {
		_ = reader.Close()
	}()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField("text")).
		AddMust(bluge.NewTermQuery(roomID).SetField("room"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}

	var ids []uuid.UUID
	for match, err := iterator.Next(); match != nil; match, err = iterator.Next() {
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
		}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				if id, parseErr := uuid.Parse(string(value)); parseErr == nil {
					ids = append(ids, id)
				} else {
					i.log.Warn("Skipping non-uuid document id", "id", string(value))
				}
			}
			return true
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
		}
	}
	return ids, nil
}
