package main

import (
	"errors"
	"math"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"
)

// setOptions carries the flag values for the set command. Interval < 0 and an
// empty Key mean "leave unchanged"; Key "-" clears the stored key.
type setOptions struct {
	Symbols  string
	Interval float64
	Key      string
}

var errEmptyUpdate = errors.New("set needs at least one of -symbols, -interval or -key")

// -----------------------------------------------------------------------------

func buildUpdate(opts setOptions) (*structpb.Struct, error) {
	fields := map[string]interface{}{}

	if opts.Symbols != "" {
		fields["symbols"] = splitSymbols(opts.Symbols)
	}
	if opts.Interval >= 0 && !math.IsNaN(opts.Interval) {
		fields["refreshIntervalMinutes"] = opts.Interval
	}
	switch opts.Key {
	case "":
	case "-":
		fields["apiKey"] = ""
	default:
		fields["apiKey"] = opts.Key
	}

	if len(fields) == 0 {
		return nil, errEmptyUpdate
	}
	return structpb.NewStruct(fields)
}

// -----------------------------------------------------------------------------

func buildRefresh(args []string) (*structpb.Struct, error) {
	if len(args) == 0 {
		return &structpb.Struct{}, nil
	}
	var symbols []interface{}
	for _, a := range args {
		symbols = append(symbols, splitSymbols(a)...)
	}
	return structpb.NewStruct(map[string]interface{}{"symbols": symbols})
}

// -----------------------------------------------------------------------------

func splitSymbols(raw string) []interface{} {
	var out []interface{}
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
