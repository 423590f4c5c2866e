package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hazardmap/mapservice/internal/api"
	"github.com/hazardmap/mapservice/internal/config"
	"github.com/hazardmap/mapservice/internal/geo"
	"github.com/hazardmap/mapservice/pkg/core"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) geocode(ctx context.Context, args []string) error {
	address := strings.TrimSpace(strings.Join(args, " "))
	if address == "" {
		return errors.New("geocode needs an address")
	}

	cand, err := a.geocoder.Resolve(ctx, address)
	if err != nil {
		return err
	}
	return printJSON(cand)
}

func (a *app) reverse(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("reverse needs <lon> <lat>")
	}
	c, err := geo.CoordinatesFromString(args[0] + "," + args[1])
	if err != nil {
		return err
	}

	loc, err := a.geocoder.Reverse(ctx, c, config.GetGeocoderConfig().ReverseDist)
	if err != nil {
		return err
	}
	return printJSON(loc)
}

func (a *app) suggest(ctx context.Context, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return errors.New("suggest needs some text")
	}

	cfg := config.GetSuggestConfig()
	out, err := a.geocoder.Suggest(ctx, text, nil, cfg.Distance, cfg.MaxSuggestions)
	if err != nil {
		return err
	}
	if out == nil {
		out = []core.Suggestion{}
	}
	return printJSON(out)
}

// health checks a running service. It needs no config or log setup.
func health(args []string) error {
	url := "http://localhost:8080"
	if len(args) > 0 {
		url = args[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := api.NewClient(url).Healthcheck(ctx); err != nil {
		return fmt.Errorf("%s is unhealthy: %w", url, err)
	}
	fmt.Println("ok")
	return nil
}
