package redis

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docrel/internal/db"
)

// Exec applies writes inside MULTI/EXEC in a single DoMulti round-trip.
func (s *Store) Exec(ctx context.Context, writes []db.Write) error {
	queued := make([]db.Write, 0, len(writes))
	cmds := make([]rueidis.Completed, 0, len(writes)+2)
	cmds = append(cmds, s.b().Multi().Build())
	for _, w := range writes {
		cmd, ok := s.build(w)
		if !ok {
			continue
		}
		queued = append(queued, w)
		cmds = append(cmds, cmd)
	}
	if len(queued) == 0 {
		return nil
	}
	cmds = append(cmds, s.b().Exec().Build())

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results[:len(results)-1] {
		if err := res.Error(); err != nil {
			if i == 0 {
				return &db.Error{Op: "MULTI", Err: err}
			}
			return &db.Error{Op: opOf(queued[i-1]), Err: fmt.Errorf("key %s: %w", queued[i-1].Key, err)}
		}
	}

	replies, err := results[len(results)-1].ToArray()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return db.ErrTxAborted
		}
		return &db.Error{Op: db.OpExec, Err: err}
	}
	for i, r := range replies {
		if err := r.Error(); err != nil && i < len(queued) {
			return &db.Error{Op: opOf(queued[i]), Err: fmt.Errorf("key %s: %w", queued[i].Key, err)}
		}
	}
	return nil
}

// build turns a write into a command. Writes that would be rejected by the
// server for lack of arguments are skipped.
func (s *Store) build(w db.Write) (rueidis.Completed, bool) {
	switch w.Kind {
	case db.WriteHSet:
		if len(w.Fields) == 0 {
			return rueidis.Completed{}, false
		}
		cmd := s.b().Hset().Key(w.Key).FieldValue()
		for _, k := range slices.Sorted(maps.Keys(w.Fields)) {
			cmd = cmd.FieldValue(k, w.Fields[k])
		}
		return cmd.Build(), true
	case db.WriteHDel:
		if len(w.Remove) == 0 {
			return rueidis.Completed{}, false
		}
		return s.b().Hdel().Key(w.Key).Field(w.Remove...).Build(), true
	case db.WriteSet:
		return s.b().Set().Key(w.Key).Value(string(w.Value)).Build(), true
	case db.WriteDel:
		return s.b().Del().Key(w.Key).Build(), true
	default:
		return rueidis.Completed{}, false
	}
}

func opOf(w db.Write) string {
	switch w.Kind {
	case db.WriteHSet:
		return db.OpHSet
	case db.WriteHDel:
		return db.OpHDel
	case db.WriteSet:
		return db.OpSet
	default:
		return db.OpDel
	}
}
