package grpc_control

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"quote-ticker/src/config"
	datasource "quote-ticker/src/data_source"
	"quote-ticker/src/engine"
	"quote-ticker/src/helpers"
	"quote-ticker/src/logger"
	"quote-ticker/src/models"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// QuoteController is the engine surface the control plane drives.
type QuoteController interface {
	Settings(ctx context.Context) models.MQuoteSettings
	UpdateSettings(ctx context.Context, update models.MQuoteSettingsUpdate) (models.MQuoteSettings, error)
	Refresh(ctx context.Context, symbols []string) ([]models.MQuote, error)
	Status() engine.Status
}

// SourceStatsReporter exposes per-provider counters.
type SourceStatsReporter interface {
	Stats() []datasource.SourceStats
}

// ControlService implements QuoteControlServer
type ControlService struct {
	Config     *config.Config
	ConfigPath string
	Engine     QuoteController
	Sources    SourceStatsReporter
	Logger     *logger.Logger
}

// NewControlService creates a new instance of ControlService. When cfgPath is
// set, watchlist and interval changes are mirrored into the YAML file.
func NewControlService(
	cfg *config.Config,
	cfgPath string,
	eng QuoteController,
	sources SourceStatsReporter,
	log *logger.Logger,
) *ControlService {
	return &ControlService{
		Config:     cfg,
		ConfigPath: cfgPath,
		Engine:     eng,
		Sources:    sources,
		Logger:     log,
	}
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetSettings(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return settingsStruct(s.Engine.Settings(ctx))
}

// -----------------------------------------------------------------------------

func (s *ControlService) UpdateSettings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	update, err := parseSettingsUpdate(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	settings, err := s.Engine.UpdateSettings(ctx, update)
	if err != nil {
		if errors.Is(err, helpers.ErrInvalidInput) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		s.Logger.Error("gRPC: UpdateSettings failed: %v", err)
		return nil, status.Errorf(codes.Internal, "update settings: %v", err)
	}

	s.persistConfig(settings)
	s.Logger.Info("gRPC: settings updated (%d symbols, %d min)", len(settings.Symbols), settings.RefreshIntervalMinutes)
	return settingsStruct(settings)
}

// -----------------------------------------------------------------------------

// persistConfig keeps the YAML defaults in line with the live watchlist. The
// API key is never written to disk.
func (s *ControlService) persistConfig(settings models.MQuoteSettings) {
	if s.Config == nil || s.ConfigPath == "" {
		return
	}
	s.Config.Quotes.DefaultSymbols = settings.Symbols
	s.Config.Quotes.RefreshIntervalMinutes = settings.RefreshIntervalMinutes

	snapshot := *s.Config.MConfig
	snapshot.Quotes.AlphaVantageAPIKey = ""
	if err := (&config.Config{MConfig: &snapshot}).Save(s.ConfigPath); err != nil {
		s.Logger.Warning("gRPC: failed to save config: %v", err)
	}
}

// -----------------------------------------------------------------------------

func (s *ControlService) RefreshQuotes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var symbols []string
	if v, ok := req.GetFields()["symbols"]; ok {
		list, err := stringList(v)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		symbols = list
	}

	quotes, err := s.Engine.Refresh(ctx, symbols)
	if err != nil && !errors.Is(err, helpers.ErrTotalRefreshFailure) {
		return nil, status.Errorf(codes.Internal, "refresh: %v", err)
	}

	items, err := toListValue(quotes)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode quotes: %v", err)
	}
	return structpb.NewStruct(map[string]interface{}{
		"quotes":    items,
		"timestamp": float64(time.Now().UnixMilli()),
	})
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetStatus(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st := s.Engine.Status()

	sources := []interface{}{}
	if s.Sources != nil {
		for _, src := range s.Sources.Stats() {
			sources = append(sources, map[string]interface{}{
				"name":      src.Name,
				"successes": float64(src.Successes),
				"failures":  float64(src.Failures),
			})
		}
	}

	cached := make([]interface{}, 0, len(st.CachedSymbols))
	for _, sym := range st.CachedSymbols {
		cached = append(cached, sym)
	}

	var lastRefresh float64
	if !st.LastRefresh.IsZero() {
		lastRefresh = float64(st.LastRefresh.UnixMilli())
	}

	return structpb.NewStruct(map[string]interface{}{
		"sources":                sources,
		"cachedSymbols":          cached,
		"lastRefresh":            lastRefresh,
		"refreshIntervalMinutes": st.Interval.Minutes(),
	})
}

// -----------------------------------------------------------------------------
// Conversions
// -----------------------------------------------------------------------------

func settingsStruct(settings models.MQuoteSettings) (*structpb.Struct, error) {
	symbols := make([]interface{}, 0, len(settings.Symbols))
	for _, sym := range settings.Symbols {
		symbols = append(symbols, sym)
	}
	return structpb.NewStruct(map[string]interface{}{
		"symbols":                symbols,
		"refreshIntervalMinutes": float64(settings.RefreshIntervalMinutes),
		"apiKey":                 settings.APIKey,
	})
}

// -----------------------------------------------------------------------------

// parseSettingsUpdate applies the same typing rules as the REST endpoint.
func parseSettingsUpdate(req *structpb.Struct) (models.MQuoteSettingsUpdate, error) {
	var update models.MQuoteSettingsUpdate
	fields := req.GetFields()

	if v, ok := fields["symbols"]; ok {
		list, err := stringList(v)
		if err != nil {
			return update, err
		}
		update.Symbols = &list
	}
	if v, ok := fields["refreshIntervalMinutes"]; ok {
		n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
		if !isNumber {
			return update, helpers.NewInvalidInput("refreshIntervalMinutes must be a number")
		}
		minutes := n.NumberValue
		update.RefreshIntervalMinutes = &minutes
	}
	if v, ok := fields["apiKey"]; ok {
		str, isString := v.GetKind().(*structpb.Value_StringValue)
		if !isString {
			return update, helpers.NewInvalidInput("apiKey must be a string")
		}
		key := str.StringValue
		update.APIKey = &key
	}
	return update, engine.ValidateSettingsUpdate(update)
}

// -----------------------------------------------------------------------------

func stringList(v *structpb.Value) ([]string, error) {
	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, helpers.NewInvalidInput("symbols must be a list of strings")
	}
	out := make([]string, 0, len(list.ListValue.GetValues()))
	for _, item := range list.ListValue.GetValues() {
		str, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, helpers.NewInvalidInput("symbols must be a list of strings")
		}
		out = append(out, str.StringValue)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

// toListValue reuses the JSON field names the REST API emits.
func toListValue(quotes []models.MQuote) ([]interface{}, error) {
	if quotes == nil {
		quotes = []models.MQuote{}
	}
	raw, err := json.Marshal(quotes)
	if err != nil {
		return nil, err
	}
	var items []interface{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}
