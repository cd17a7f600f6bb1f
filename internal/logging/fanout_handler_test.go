package logging

import (
	"bytes"
	"log/slog"
	"testing"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every handler is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner); h != inner {
		t.Fatal("expected single handler to be returned unwrapped")
	}
}

func TestFanoutHandlerRespectsPerHandlerLevels(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	infoHandler := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	debugHandler := slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(newFanoutHandler(infoHandler, debugHandler))

	logger.Debug("debug only")
	if infoBuf.Len() != 0 {
		t.Fatalf("info handler received debug record: %s", infoBuf.String())
	}
	if debugBuf.Len() == 0 {
		t.Fatal("debug handler missed debug record")
	}
}

func TestFanoutHandlerPropagatesAttrsAndGroups(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(slog.NewJSONHandler(&buf1, nil), slog.NewJSONHandler(&buf2, nil))
	logger := slog.New(h).With("key", "value").WithGroup("grp")
	logger.Info("test", slog.String("field", "x"))

	for i, buf := range []*bytes.Buffer{&buf1, &buf2} {
		if !bytes.Contains(buf.Bytes(), []byte(`"key":"value"`)) || !bytes.Contains(buf.Bytes(), []byte(`"grp":{"field":"x"}`)) {
			t.Fatalf("handler %d missing attrs: %s", i, buf.String())
		}
	}
}
