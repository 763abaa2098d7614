package repositories

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"reef-chat/domain/chat"
	"reef-chat/errors"
)

const (
	msgKeyPrefix = "msg:"
	idKeyPrefix  = "msgid:"
	// 19 digits hold any int64 UnixNano value, so zero padding keeps
	// lexicographical order equal to chronological order.
	timestampWidth = 19
	maxTimestamp   = "9999999999999999999"
)

// MessageRepository persists messages in BadgerDB.
// The primary key is "msg:{room}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
//
// A secondary key "msgid:{uuid}" points at the primary key so deep-link and
// delete lookups do not need a room scan.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

func roomPrefix(roomID string) []byte {
	return []byte(msgKeyPrefix + roomID + ":")
}

func primaryKey(m chat.Message) []byte {
	return []byte(fmt.Sprintf("%s%s:%0*d:%s",
		msgKeyPrefix, m.Room, timestampWidth, m.CreatedAt.UnixNano(), m.ID))
}

func idKey(id uuid.UUID) []byte {
	return []byte(idKeyPrefix + id.String())
}

// Append assigns the id and creation timestamp, persists the record and
// returns it. The caller must not broadcast anything if an error comes back.
func (m MessageRepository) Append(input chat.MessageInput) (chat.Message, error) {
	if err := input.Validate(); err != nil {
		return chat.Message{}, err
	}
	message := chat.Message{
		ID:                uuid.New(),
		Room:              input.Room,
		SenderStableID:    input.SenderStableID,
		SenderDisplayName: input.SenderDisplayName,
		SenderAvatarURL:   input.SenderAvatarURL,
		Kind:              input.Kind,
		Text:              input.Text,
		MediaURL:          input.MediaURL,
		MediaKind:         input.MediaKind,
		IsGuest:           input.IsGuest,
		CreatedAt:         time.Now().UTC(),
	}
	value, err := json.Marshal(message)
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	key := primaryKey(message)
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(idKey(message.ID), key)
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return message, nil
}

// Get resolves a message by id through the secondary key.
func (m MessageRepository) Get(id uuid.UUID) (chat.Message, error) {
	var message chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		key, err := resolvePrimaryKey(txn, id)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &message)
		})
	})
	if err != nil {
		return chat.Message{}, mapBadgerError(err)
	}
	return message, nil
}

// Query returns up to limit messages of a room with CreatedAt strictly
// before the cursor (or the most recent ones when the cursor is nil),
// ascending by creation time.
//
// The reverse iterator walks newest-first thanks to the padded timestamp in
// the key; the collected page is flipped before returning.
func (m MessageRepository) Query(roomID string, before *time.Time, limit int) ([]chat.Message, error) {
	prefix := roomPrefix(roomID)
	var page []chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch before {
		case nil:
			// Position past the newest possible key, then walk back.
			seekKey = append(append([]byte{}, prefix...), []byte(maxTimestamp)...)
		default:
			// Keys carrying exactly the cursor timestamp sort after this
			// seek key, so the scan only yields strictly older messages.
			seekKey = append(append([]byte{}, prefix...),
				[]byte(fmt.Sprintf("%0*d", timestampWidth, before.UnixNano()))...)
		}

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(page) == limit {
				break
			}
			var message chat.Message
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &message)
			})
			if err != nil {
				return err
			}
			page = append(page, message)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	reverseInPlace(page)
	return page, nil
}

// FindWindow resolves the target message, then returns every message of
// its room created within [target-window, target+window], ascending.
// Deep links rely on this time-bounded scan instead of a random-access
// pagination index.
func (m MessageRepository) FindWindow(id uuid.UUID, window time.Duration) ([]chat.Message, error) {
	target, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	from := target.CreatedAt.Add(-window).UnixNano()
	to := target.CreatedAt.Add(window).UnixNano()
	prefix := roomPrefix(target.Room)
	var messages []chat.Message
	err = m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		seekKey := append(append([]byte{}, prefix...),
			[]byte(fmt.Sprintf("%0*d", timestampWidth, from))...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			createdAt, err := timestampOfKey(it.Item().Key(), len(prefix))
			if err != nil {
				return err
			}
			if createdAt > to {
				break
			}
			var message chat.Message
			err = it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &message)
			})
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return messages, nil
}

// Remove deletes a message by id. Authorization happens upstream in the
// hub; this is the raw destructive operation.
func (m MessageRepository) Remove(id uuid.UUID) error {
	err := m.db.Update(func(txn *badger.Txn) error {
		key, err := resolvePrimaryKey(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(idKey(id))
	})
	return mapBadgerError(err)
}

func resolvePrimaryKey(txn *badger.Txn, id uuid.UUID) ([]byte, error) {
	item, err := txn.Get(idKey(id))
	if err != nil {
		return nil, err
	}
	var key []byte
	err = item.Value(func(value []byte) error {
		key = append(key, value...)
		return nil
	})
	return key, err
}

func timestampOfKey(key []byte, prefixLen int) (int64, error) {
	rest := key[prefixLen:]
	end := bytes.IndexByte(rest, ':')
	if end != timestampWidth {
		return 0, fmt.Errorf("%w: malformed message key %q", errors.ErrStorage, key)
	}
	return strconv.ParseInt(string(rest[:end]), 10, 64)
}

func mapBadgerError(err error) error {
	switch {
	case err == nil:
		return nil
	case err == badger.ErrKeyNotFound:
		return fmt.Errorf("%w: %v", errors.ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
}

func reverseInPlace(messages []chat.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
