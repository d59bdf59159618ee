package artwork

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Henry-Sarabia/igdb/v2"
)

// IGDB finds cover art through the IGDB API
type IGDB struct {
	client *igdb.Client
}

// NewIGDB creates an IGDB finder from a Twitch client ID and app access token
func NewIGDB(clientID, accessToken string) *IGDB {
	httpClient := &http.Client{Timeout: 10 * time.Second}
	return &IGDB{client: igdb.NewClient(clientID, accessToken, httpClient)}
}

type igdbResult struct {
	url string
	err error
}

// FindImage implements Finder. The igdb client takes no context, so the
// call runs in its own goroutine and is abandoned when ctx ends.
func (f *IGDB) FindImage(ctx context.Context, name string) (string, error) {
	done := make(chan igdbResult, 1)
	go func() {
		url, err := f.lookup(name)
		done <- igdbResult{url: url, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.url, res.err
	}
}

func (f *IGDB) lookup(name string) (string, error) {
	games, err := f.client.Games.Search(name, igdb.SetFields("name", "cover"), igdb.SetLimit(1))
	if err != nil {
		return "", fmt.Errorf("igdb search %q: %w", name, err)
	}
	if len(games) == 0 || games[0].Cover == 0 {
		return "", ErrUnavailable
	}

	cover, err := f.client.Covers.Get(games[0].Cover, igdb.SetFields("image_id"))
	if err != nil {
		return "", fmt.Errorf("igdb cover %d: %w", games[0].Cover, err)
	}
	if cover.ImageID == "" {
		return "", ErrUnavailable
	}

	return igdb.SizedImageURL(cover.ImageID, igdb.SizeCoverBig, 1)
}
