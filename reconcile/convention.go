package reconcile

import (
	"sort"
	"strconv"
	"strings"
)

// Convention is the month numbering used by a source.
type Convention int

const (
	ZeroBased Convention = iota
	OneBased
)

func (c Convention) String() string {
	if c == OneBased {
		return "one-based"
	}
	return "zero-based"
}

// Index converts a raw month number to a 0-based installment index.
func (c Convention) Index(raw int64) int64 {
	if c == OneBased {
		return raw - 1
	}
	return raw
}

// InferConvention guesses the numbering of raw month values.
// A raw 0 proves zero-based; otherwise a maximum of total-1 is read as zero-based
// and anything else as one-based.
func InferConvention(raw []int64, total int) Convention {
	if len(raw) == 0 {
		return ZeroBased
	}
	maxRaw := raw[0]
	for _, v := range raw {
		if v == 0 {
			return ZeroBased
		}
		if v > maxRaw {
			maxRaw = v
		}
	}
	if maxRaw == int64(total)-1 {
		return ZeroBased
	}
	return OneBased
}

// EventsByIndex buckets payment logs by installment index. When several logs land on the
// same index the one with the highest (block, log index) wins.
func EventsByIndex(logs []PaymentLog, total int) map[int]InstallmentStatus {
	if len(logs) == 0 || total <= 0 {
		return nil
	}

	ordered := make([]PaymentLog, 0, len(logs))
	raw := make([]int64, 0, len(logs))
	for _, l := range logs {
		if l.Status != LogExecuted && l.Status != LogFailed {
			continue
		}
		ordered = append(ordered, l)
		raw = append(raw, l.MonthNumber)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].BlockNumber != ordered[j].BlockNumber {
			return ordered[i].BlockNumber < ordered[j].BlockNumber
		}
		return ordered[i].LogIndex < ordered[j].LogIndex
	})

	conv := InferConvention(raw, total)
	out := make(map[int]InstallmentStatus, len(ordered))
	for _, l := range ordered {
		idx := conv.Index(l.MonthNumber)
		if idx < 0 || idx >= int64(total) {
			continue
		}
		if l.Status == LogFailed {
			out[int(idx)] = StatusFailed
		} else {
			out[int(idx)] = StatusExecuted
		}
	}
	return out
}

// StatusesByIndex re-keys the keeper's monthly_statuses map to 0-based indices.
// Keys that are not numbers and values that do not normalize are dropped.
func StatusesByIndex(monthly map[string]string, total int) map[int]InstallmentStatus {
	if len(monthly) == 0 || total <= 0 {
		return nil
	}

	type entry struct {
		raw    int64
		status InstallmentStatus
	}
	entries := make([]entry, 0, len(monthly))
	raw := make([]int64, 0, len(monthly))
	for k, v := range monthly {
		n, err := strconv.ParseInt(strings.TrimSpace(k), 10, 64)
		if err != nil || n < 0 {
			continue
		}
		raw = append(raw, n)
		st, ok := NormalizeStatus(v)
		if !ok {
			continue
		}
		entries = append(entries, entry{raw: n, status: st})
	}

	conv := InferConvention(raw, total)
	out := make(map[int]InstallmentStatus, len(entries))
	for _, e := range entries {
		idx := conv.Index(e.raw)
		if idx < 0 || idx >= int64(total) {
			continue
		}
		out[int(idx)] = e.status
	}
	return out
}
