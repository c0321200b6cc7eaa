package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guttosm/proptrack/internal/domain/models"
	"github.com/guttosm/proptrack/internal/platform"
)

var (
	// ErrEmptyFile is wrapped by the ParseError returned for empty input.
	ErrEmptyFile = errors.New("CSV file is empty")
	// ErrHeaderOnly is wrapped by the ParseError returned when the file has a
	// header row but no trade rows.
	ErrHeaderOnly = errors.New("CSV has a header row but no trade rows")
	// ErrUnknownPlatform is wrapped when no format is registered for a platform.
	ErrUnknownPlatform = errors.New("unknown platform")
)

// ParseError is returned when a CSV export cannot be turned into trades.
// The whole file is rejected; no partial result is returned.
type ParseError struct {
	Platform string
	Line     int    // 1-based line in the file, 0 when not row specific
	Column   string // header name, empty when not column specific
	Err      error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Column != "":
		return fmt.Sprintf("parse %s CSV: line %d, column %q: %v", e.Platform, e.Line, e.Column, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("parse %s CSV: line %d: %v", e.Platform, e.Line, e.Err)
	case e.Column != "":
		return fmt.Sprintf("parse %s CSV: column %q: %v", e.Platform, e.Column, e.Err)
	default:
		return fmt.Sprintf("parse %s CSV: %v", e.Platform, e.Err)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// Hint carries account context that changes how rows are interpreted.
//
// Fields:
//   - PnlIncludesFees: the firm exports PnL already net of fees (ProjectX).
//   - FeePerSide: per-contract, per-side fee charged by the firm (Tradovate
//     exports carry no fees).
//   - Location: timezone of offset-less timestamps (Tradovate). Defaults to
//     America/Chicago.
type Hint struct {
	PnlIncludesFees bool
	FeePerSide      decimal.Decimal
	Location        *time.Location
}

// format describes one platform's CSV layout.
type format struct {
	required []string
	row      func(r row, hint Hint) (models.NormalizedTrade, error)
}

var formats = map[string]format{
	platform.ProjectX: {
		required: []string{"Id", "ContractName", "EnteredAt", "ExitedAt", "EntryPrice", "ExitPrice", "Fees", "PnL", "Size", "Type", "TradeDay"},
		row:      projectXRow,
	},
	platform.Tradovate: {
		required: []string{"symbol", "buyFillId", "sellFillId", "qty", "buyPrice", "sellPrice", "pnl", "boughtTimestamp", "soldTimestamp"},
		row:      tradovateRow,
	},
}

// Parse converts a broker CSV export into normalized trades, in file order.
//
// It fails with *ParseError on:
//   - empty input (wraps ErrEmptyFile)
//   - a header with no data rows (wraps ErrHeaderOnly)
//   - a missing required column (Column names it)
//   - any malformed or missing required value (Line and Column locate it)
//
// Blank lines are skipped; "\n" and "\r\n" line endings are equivalent.
func Parse(platformID string, csvText string, hint Hint) ([]models.NormalizedTrade, error) {
	pid := platform.Normalize(platformID)
	f, ok := formats[pid]
	if !ok {
		return nil, &ParseError{Platform: platformID, Err: fmt.Errorf("%w %q", ErrUnknownPlatform, platformID)}
	}
	if hint.Location == nil {
		hint.Location = exchangeLocation
	}

	text := strings.TrimPrefix(csvText, "\ufeff")
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Platform: pid, Err: ErrEmptyFile}
	}

	r := csv.NewReader(strings.NewReader(text))
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1 // ragged rows are checked per column instead

	header, err := r.Read()
	if err != nil {
		return nil, &ParseError{Platform: pid, Line: 1, Err: fmt.Errorf("read header: %w", err)}
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	for _, col := range f.required {
		if _, ok := index[strings.ToLower(col)]; !ok {
			return nil, &ParseError{Platform: pid, Column: col, Err: errors.New("missing required column")}
		}
	}

	var trades []models.NormalizedTrade
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			pe := &ParseError{Platform: pid, Err: err}
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				pe.Line = csvErr.StartLine
				pe.Err = csvErr.Err
			}
			return nil, pe
		}
		line, _ := r.FieldPos(0)
		if blank(rec) {
			continue
		}

		tr, err := f.row(row{rec: rec, index: index}, hint)
		if err != nil {
			pe := &ParseError{Platform: pid, Line: line, Err: err}
			var fe *fieldError
			if errors.As(err, &fe) {
				pe.Column = fe.column
				pe.Err = fe.err
			}
			return nil, pe
		}
		trades = append(trades, tr)
	}

	if len(trades) == 0 {
		return nil, &ParseError{Platform: pid, Err: ErrHeaderOnly}
	}
	return trades, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

type fieldError struct {
	column string
	err    error
}

func (e *fieldError) Error() string { return fmt.Sprintf("%s: %v", e.column, e.err) }

var errRequired = errors.New("value is required")

// row gives name-based access to one CSV record.
type row struct {
	rec   []string
	index map[string]int
}

func (r row) get(col string) string {
	i, ok := r.index[strings.ToLower(col)]
	if !ok || i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

func (r row) str(col string) (string, error) {
	s := r.get(col)
	if s == "" {
		return "", &fieldError{col, errRequired}
	}
	return s, nil
}

func (r row) dec(col string) (decimal.Decimal, error) {
	s := r.get(col)
	if s == "" {
		return decimal.Zero, &fieldError{col, errRequired}
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, &fieldError{col, fmt.Errorf("invalid number %q", s)}
	}
	return d, nil
}

// optDec returns nil for an empty (or absent) column.
func (r row) optDec(col string) (*decimal.Decimal, error) {
	if r.get(col) == "" {
		return nil, nil
	}
	d, err := r.dec(col)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r row) size(col string) (int64, error) {
	s := r.get(col)
	if s == "" {
		return 0, &fieldError{col, errRequired}
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
	if err != nil {
		return 0, &fieldError{col, fmt.Errorf("invalid size %q", s)}
	}
	if n <= 0 {
		return 0, &fieldError{col, fmt.Errorf("size must be positive, got %d", n)}
	}
	return n, nil
}

// offsetLayouts are timestamp layouts that carry a UTC offset. Fractional
// seconds are accepted by time.Parse even when the layout omits them.
var offsetLayouts = []string{
	"01/02/2006 15:04:05 -07:00",
	"01/02/2006 15:04:05 -0700",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05 -0700",
	time.RFC3339Nano,
}

func (r row) timestamp(col string) (time.Time, error) {
	s := r.get(col)
	if s == "" {
		return time.Time{}, &fieldError{col, errRequired}
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &fieldError{col, fmt.Errorf("invalid timestamp %q (expected a UTC offset)", s)}
}

var localLayouts = []string{
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func (r row) localTimestamp(col string, loc *time.Location) (time.Time, error) {
	s := r.get(col)
	if s == "" {
		return time.Time{}, &fieldError{col, errRequired}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &fieldError{col, fmt.Errorf("invalid timestamp %q", s)}
}

// day parses a trading-day bucket given either as a date or as a timestamp.
// For timestamps the calendar date in the value's own offset is used.
func (r row) day(col string) (time.Time, error) {
	s := r.get(col)
	if s == "" {
		return time.Time{}, &fieldError{col, errRequired}
	}
	for _, layout := range []string{"2006-01-02", "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return models.DateOf(t), nil
		}
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.DateOf(t), nil
		}
	}
	return time.Time{}, &fieldError{col, fmt.Errorf("invalid trade day %q", s)}
}

func projectXRow(r row, hint Hint) (models.NormalizedTrade, error) {
	var t models.NormalizedTrade
	var err error

	if t.ExternalID, err = r.str("Id"); err != nil {
		return t, err
	}
	t.ContractName = r.get("ContractName")
	if t.EnteredAt, err = r.timestamp("EnteredAt"); err != nil {
		return t, err
	}
	if t.ExitedAt, err = r.timestamp("ExitedAt"); err != nil {
		return t, err
	}
	if t.EntryPrice, err = r.dec("EntryPrice"); err != nil {
		return t, err
	}
	if t.ExitPrice, err = r.dec("ExitPrice"); err != nil {
		return t, err
	}
	if t.Size, err = r.size("Size"); err != nil {
		return t, err
	}

	switch strings.ToLower(r.get("Type")) {
	case "long", "buy":
		t.Direction = models.Long
	case "short", "sell":
		t.Direction = models.Short
	default:
		return t, &fieldError{"Type", fmt.Errorf("invalid direction %q", r.get("Type"))}
	}

	if t.GrossPnl, err = r.dec("PnL"); err != nil {
		return t, err
	}
	fees, err := r.optDec("Fees")
	if err != nil {
		return t, err
	}
	if fees != nil {
		t.Fees = *fees
	}
	if t.Commissions, err = r.optDec("Commissions"); err != nil {
		return t, err
	}
	if hint.PnlIncludesFees {
		t.GrossPnl = t.GrossPnl.Add(t.Fees)
		if t.Commissions != nil {
			t.GrossPnl = t.GrossPnl.Add(*t.Commissions)
		}
	}

	if t.TradeDay, err = r.day("TradeDay"); err != nil {
		return t, err
	}
	if s := r.get("TradeDuration"); s != "" {
		secs, err := parseClockDuration(s)
		if err != nil {
			return t, &fieldError{"TradeDuration", err}
		}
		t.TradeDurationSeconds = &secs
	}
	return t, nil
}

func tradovateRow(r row, hint Hint) (models.NormalizedTrade, error) {
	var t models.NormalizedTrade

	buyID, err := r.str("buyFillId")
	if err != nil {
		return t, err
	}
	sellID, err := r.str("sellFillId")
	if err != nil {
		return t, err
	}
	t.ExternalID = buyID + "-" + sellID
	t.ContractName = r.get("symbol")

	if t.Size, err = r.size("qty"); err != nil {
		return t, err
	}
	buyPrice, err := r.dec("buyPrice")
	if err != nil {
		return t, err
	}
	sellPrice, err := r.dec("sellPrice")
	if err != nil {
		return t, err
	}
	bought, err := r.localTimestamp("boughtTimestamp", hint.Location)
	if err != nil {
		return t, err
	}
	sold, err := r.localTimestamp("soldTimestamp", hint.Location)
	if err != nil {
		return t, err
	}

	if !sold.Before(bought) {
		t.Direction = models.Long
		t.EnteredAt, t.EntryPrice = bought, buyPrice
		t.ExitedAt, t.ExitPrice = sold, sellPrice
	} else {
		t.Direction = models.Short
		t.EnteredAt, t.EntryPrice = sold, sellPrice
		t.ExitedAt, t.ExitPrice = bought, buyPrice
	}

	pnl := r.get("pnl")
	if pnl == "" {
		return t, &fieldError{"pnl", errRequired}
	}
	if t.GrossPnl, err = parseMoney(pnl); err != nil {
		return t, &fieldError{"pnl", err}
	}

	// Round-turn fee: one fill in, one fill out per contract.
	t.Fees = hint.FeePerSide.Mul(decimal.NewFromInt(t.Size * 2))
	t.TradeDay = SessionDay(t.ExitedAt)

	secs := t.ExitedAt.Sub(t.EnteredAt).Seconds()
	if s := r.get("duration"); s != "" {
		if secs, err = parseUnitDuration(s); err != nil {
			return t, &fieldError{"duration", err}
		}
	}
	t.TradeDurationSeconds = &secs
	return t, nil
}

// parseMoney accepts accounting formats: "$1,234.50", "$(12.50)", "-$12.50".
func parseMoney(s string) (decimal.Decimal, error) {
	v := strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		neg = true
		v = v[1 : len(v)-1]
	}
	v = strings.ReplaceAll(v, "$", "")
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		neg = true
		v = v[1 : len(v)-1]
	}
	v = strings.ReplaceAll(v, ",", "")
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// parseClockDuration parses "[d.]hh:mm:ss[.fraction]" into seconds.
func parseClockDuration(s string) (float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	var days, hours int64
	var err error
	if d, h, ok := strings.Cut(parts[0], "."); ok {
		if days, err = strconv.ParseInt(d, 10, 64); err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		parts[0] = h
	}
	if hours, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	mins, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	secs, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return float64(days*86400+hours*3600+mins*60) + secs, nil
}

// unitDurationRe matches one leading "<number><unit>" pair. Longer units come
// first so "min" is not read as "m" followed by "in".
var unitDurationRe = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*(min|sec|hr|d|h|m|s)`)

// parseUnitDuration parses Tradovate durations like "2h 3min 4sec". The whole
// value must be a sequence of number/unit pairs; any other text is an error.
func parseUnitDuration(s string) (float64, error) {
	rest := strings.ToLower(strings.TrimSpace(s))
	if rest == "" {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	var total float64
	for rest != "" {
		m := unitDurationRe.FindStringSubmatch(rest)
		if m == nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		switch m[2] {
		case "d":
			total += v * 86400
		case "h", "hr":
			total += v * 3600
		case "min", "m":
			total += v * 60
		default:
			total += v
		}
		rest = strings.TrimLeft(rest[len(m[0]):], " \t")
	}
	return total, nil
}
