package mapdata

import (
	"errors"

	"go.uber.org/zap"

	"refillplan/internal/config"
)

// FromConfig picks the data source for a deployment. A data directory wins
// over the game service for reads; submissions always go to the service
// and are unavailable without its URL.
func FromConfig(game config.Game, rc config.Redis, log *zap.Logger) (Source, Submitter, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var client *Client
	if game.APIURL != "" {
		client = NewClient(game.APIURL, game.APIKey, game.RateRPS, game.RateBurst)
		client.Logger = log.Named("mapdata")
		if game.Timeout > 0 {
			client.HTTP.Timeout = game.Timeout
		}
		if rc.URL != "" {
			cache, err := NewRedisCache(rc.URL)
			if err != nil {
				return nil, nil, err
			}
			client.Cache = cache
			client.TTL = rc.CacheTTL
		}
	}

	var sub Submitter
	if client != nil {
		sub = client
	}
	switch {
	case game.DataDir != "":
		return FileSource{Dir: game.DataDir}, sub, nil
	case client != nil:
		return client, sub, nil
	}
	return nil, nil, errors.New("mapdata: set game.dataDir or game.apiURL")
}
