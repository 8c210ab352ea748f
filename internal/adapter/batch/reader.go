package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rl1809/paper-fulfillment/internal/core/domain"
)

var ErrMissingColumn = errors.New("missing column")

var requiredColumns = []string{"request", "request_date"}

// ReadRequests parses a request CSV. Rows with an unreadable date are skipped;
// the rest are returned sorted by request date, keeping file order for equal dates.
func ReadRequests(r io.Reader, logger *zap.Logger) ([]domain.CustomerRequest, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}

	var reqs []domain.CustomerRequest
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		at, err := domain.ParseRequestDate(field("request_date"))
		if err != nil {
			logger.Warn("skipping request with bad date", zap.Int("line", line), zap.Error(err))
			continue
		}
		id := field("request_id")
		if id == "" {
			id = fmt.Sprintf("req-%04d", line-1)
		}
		reqs = append(reqs, domain.CustomerRequest{
			ID:           id,
			CustomerName: field("customer"),
			RawText:      field("request"),
			Context: domain.CustomerContext{
				JobType:        field("job"),
				EventType:      field("event"),
				NeedSize:       field("need_size"),
				RepeatCustomer: parseFlag(field("repeat_customer")),
			},
			RequestedAt: at,
		})
	}

	sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].RequestedAt.Before(reqs[j].RequestedAt) })
	return reqs, nil
}

func parseFlag(s string) bool {
	switch strings.ToLower(s) {
	case "yes", "y":
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}
