package utils

import (
	"strings"
	"sync"
	"time"

	"quote-ticker/src/logger"

	"github.com/scmhub/calendar"
)

// Market states reported for quotes whose provider does not send one.
const (
	MarketStateRegular = "REGULAR"
	MarketStateClosed  = "CLOSED"
)

// suffixMICs maps exchange suffixes to ISO 10383 MIC codes known to scmhub/calendar.
var suffixMICs = map[string]string{
	".L": "xlon", ".PA": "xpar", ".DE": "xfra", ".AS": "xams", ".BR": "xbru",
	".MI": "xmil", ".MC": "xmad", ".ST": "xsto", ".CO": "xcse", ".HE": "xhel",
	".VI": "xwbo", ".SW": "xswx", ".TO": "xtse", ".V": "xtsx", ".T": "xtks",
	".HK": "xhkg", ".AX": "xasx", ".KS": "xkrx", ".TW": "xtai", ".SS": "xshg",
	".SZ": "xshe",
}

// TradingCalendar answers session questions for one exchange.
type TradingCalendar struct {
	MIC      string
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// MICForSymbol picks the exchange from the ticker suffix, NYSE otherwise.
func MICForSymbol(symbol string) string {
	upper := NormalizeSymbol(symbol)
	if i := strings.LastIndex(upper, "."); i > 0 {
		if mic, ok := suffixMICs[upper[i:]]; ok {
			return mic
		}
	}
	return "xnys"
}

// -----------------------------------------------------------------------------

func loadCalendar(mic string, log *logger.Logger) *TradingCalendar {
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		cal = calendar.GetCalendar("xnys")
	}

	if cal == nil {
		log.Warning("Failed to load calendar for MIC '%s' and fallback 'xnys'. Using Mon-Fri 09:30-16:00 New York.", mic)
		nyLoc, err := time.LoadLocation("America/New_York")
		if err != nil {
			nyLoc = time.UTC
		}
		return &TradingCalendar{MIC: mic, Fallback: true, Timezone: nyLoc}
	}

	return &TradingCalendar{MIC: mic, Calendar: cal, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenOnMinute checks if the market is open at a specific minute.
func (tc *TradingCalendar) IsOpenOnMinute(t time.Time) bool {
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if tc.Fallback {
		if !tc.IsTradingDay(t) {
			return false
		}
		minutes := t.Hour()*60 + t.Minute()
		return minutes >= 9*60+30 && minutes < 16*60
	}

	return tc.Calendar.IsOpen(t)
}

// -----------------------------------------------------------------------------
// MarketHours
// -----------------------------------------------------------------------------

// MarketHours resolves a session state per symbol, sharing one calendar per exchange.
type MarketHours struct {
	Logger    *logger.Logger
	mu        sync.Mutex
	calendars map[string]*TradingCalendar
}

// -----------------------------------------------------------------------------

func NewMarketHours(l *logger.Logger) *MarketHours {
	return &MarketHours{
		Logger:    l,
		calendars: make(map[string]*TradingCalendar),
	}
}

// -----------------------------------------------------------------------------

// CalendarFor returns the cached calendar for the symbol's exchange.
func (mh *MarketHours) CalendarFor(symbol string) *TradingCalendar {
	mic := MICForSymbol(symbol)

	mh.mu.Lock()
	defer mh.mu.Unlock()

	if cal, ok := mh.calendars[mic]; ok {
		return cal
	}
	cal := loadCalendar(mic, mh.Logger)
	mh.calendars[mic] = cal
	mh.Logger.Debug("Loaded %s calendar (%d exchanges cached)", mic, len(mh.calendars))
	return cal
}

// -----------------------------------------------------------------------------

// State reports REGULAR while the symbol's exchange is in session. Crypto pairs
// trade around the clock.
func (mh *MarketHours) State(symbol string, at time.Time) string {
	if IsCrypto(symbol) {
		return MarketStateRegular
	}
	if mh.CalendarFor(symbol).IsOpenOnMinute(at.UTC()) {
		return MarketStateRegular
	}
	return MarketStateClosed
}
