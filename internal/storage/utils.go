package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RowsStream[T any] struct {
	Row T
	Err error
}

func AllFromRowsStream[T any](ch <-chan RowsStream[T]) ([]T, error) {
	var items []T
	for item := range ch {
		if item.Err != nil {
			return nil, fmt.Errorf("item.Err: %w", item.Err)
		}
		items = append(items, item.Row)
	}
	return items, nil
}

// GetRowsStream
// TLDR: fetch rows from db with a non-buffered channel to control concurrency by data-consumer
func GetRowsStream[T any](
	ctx context.Context,
	pool *pgxpool.Pool,
	scanRow func(rows pgx.Rows) (T, error),
	sql string,
	args ...any,
) <-chan RowsStream[T] {
	ch := make(chan RowsStream[T])

	go func() {
		defer close(ch)

		rows, err := pool.Query(ctx, sql, args...)
		if err != nil {
			send(ctx, ch, RowsStream[T]{Err: fmt.Errorf("pool.Query: %w", err)})
			return
		}
		defer rows.Close()

		for rows.Next() {
			item, er := scanRow(rows)
			if er != nil {
				send(ctx, ch, RowsStream[T]{Err: fmt.Errorf("scanRow: %w", er)})
				return
			}
			if !send(ctx, ch, RowsStream[T]{Row: item}) {
				return
			}
		}
		if err = rows.Err(); err != nil {
			send(ctx, ch, RowsStream[T]{Err: fmt.Errorf("rows.Err: %w", err)})
		}
	}()

	return ch
}

// send gives up when the consumer's context ends so the producer goroutine never leaks.
func send[T any](ctx context.Context, ch chan<- RowsStream[T], item RowsStream[T]) bool {
	select {
	case ch <- item:
		return true
	case <-ctx.Done():
		return false
	}
}
