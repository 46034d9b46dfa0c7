package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/anatolykoptev/go_cortex/internal/engine"
)

type stubAdapter struct{}

func (stubAdapter) FetchVideos(context.Context, string, int) ([]engine.Video, error) { return nil, nil }
func (stubAdapter) DownloadVideo(context.Context, engine.Video, string) error      { return nil }

func TestNew_Unsupported(t *testing.T) {
	_, err := New("myspace", &engine.Config{})
	if !errors.Is(err, engine.ErrUnsupportedPlatform) {
		t.Fatalf("err = %v, want ErrUnsupportedPlatform", err)
	}
}

func TestRegister_CaseInsensitive(t *testing.T) {
	Register("StubTube", func(*engine.Config) (Adapter, error) { return stubAdapter{}, nil })
	t.Cleanup(func() {
		mu.Lock()
		delete(constructors, "stubtube")
		mu.Unlock()
	})

	a, err := New(" stubtube ", &engine.Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := a.(stubAdapter); !ok {
		t.Errorf("got %T, want stubAdapter", a)
	}

	found := false
	for _, n := range Names() {
		if n == "stubtube" {
			found = true
		}
	}
	if !found {
		t.Errorf("Names() = %v, missing stubtube", Names())
	}
}
