package logger_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/mallard/internal/adapters/logger"
	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestCollectErrorEntries(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		assert.Empty(t, logger.CollectErrorEntriesExported(nil))
	})

	t.Run("standard error", func(t *testing.T) {
		entries := logger.CollectErrorEntriesExported(errors.New("plain"))
		assert.Equal(t, []logger.ErrorEntry{{Message: "plain"}}, entries)
	})

	t.Run("zerr chain", func(t *testing.T) {
		base := zerr.New("third")
		mid := zerr.With(zerr.Wrap(base, "second"), "key", "value")
		top := zerr.Wrap(mid, "first")

		entries := logger.CollectErrorEntriesExported(top)
		assert.Len(t, entries, 3)
		assert.Equal(t, "first", entries[0].Message)
		assert.Equal(t, "second", entries[1].Message)
		assert.Equal(t, "value", entries[1].Metadata["key"])
		assert.Equal(t, "third", entries[2].Message)
	})

	t.Run("detail folds into the sentinel", func(t *testing.T) {
		err := domain.Detail(domain.ErrTargetNotFound, "target", "model")

		entries := logger.CollectErrorEntriesExported(err)
		assert.Len(t, entries, 1)
		assert.Equal(t, domain.ErrTargetNotFound.Error(), entries[0].Message)
		assert.Equal(t, "model", entries[0].Metadata["target"])
	})

	t.Run("stops at standard errors", func(t *testing.T) {
		inner := fmt.Errorf("outer std: %w", errors.New("inner std"))
		entries := logger.CollectErrorEntriesExported(zerr.Wrap(inner, "top"))
		assert.Len(t, entries, 2)
		assert.Equal(t, "outer std: inner std", entries[1].Message)
	})

	t.Run("joined errors are flattened", func(t *testing.T) {
		err := errors.Join(zerr.New("first"), errors.New("second"))
		entries := logger.CollectErrorEntriesExported(err)
		assert.Len(t, entries, 2)
		assert.Equal(t, "first", entries[0].Message)
		assert.Equal(t, "second", entries[1].Message)
	})
}

func TestFormatErrorEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []logger.ErrorEntry
		want    string
	}{
		{name: "empty", entries: nil, want: ""},
		{
			name:    "single",
			entries: []logger.ErrorEntry{{Message: "only"}},
			want:    "Error: only",
		},
		{
			name: "chain",
			entries: []logger.ErrorEntry{
				{Message: "first"},
				{Message: "second"},
				{Message: "third"},
			},
			want: "Error: first\n\n  Caused by:\n    → second\n    → third",
		},
		{
			name: "metadata sorted",
			entries: []logger.ErrorEntry{
				{Message: "top", Metadata: map[string]any{"b": 2, "a": 1}},
				{Message: "cause", Metadata: map[string]any{"cause_key": "cause_val"}},
			},
			want: "Error: top\n       a: 1\n       b: 2\n\n  Caused by:\n    → cause\n      cause_key: cause_val",
		},
		{
			name:    "multiline message",
			entries: []logger.ErrorEntry{{Message: "line1\nline2"}},
			want:    "Error: line1\n       line2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, logger.FormatErrorEntriesExported(tt.entries))
		})
	}
}
