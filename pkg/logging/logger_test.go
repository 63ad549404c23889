package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

// TestNewWithWriter はNewWithWriter関数を検証する。
func TestNewWithWriter(t *testing.T) {
	t.Parallel()

	t.Run("JSON形式でサービス名が出力されること", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewWithWriter(&buf, "user", "info", FormatJSON)
		logger.Info().Msg("起動")

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("ログのパースに失敗: %v, log=%s", err, buf.String())
		}
		if entry["service"] != "user" {
			t.Errorf("service = %v, want %q", entry["service"], "user")
		}
		if entry["message"] != "起動" {
			t.Errorf("message = %v, want %q", entry["message"], "起動")
		}
		if _, ok := entry["time"]; !ok {
			t.Error("timeが出力されていない")
		}
	})

	t.Run("ログレベル未満のログは出力されないこと", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewWithWriter(&buf, "order", "warn", FormatJSON)
		logger.Info().Msg("出力されない")

		if buf.Len() != 0 {
			t.Errorf("infoログが出力された: %s", buf.String())
		}
	})

	t.Run("不正なログレベルはinfoとして扱われること", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewWithWriter(&buf, "product", "verbose", FormatJSON)
		logger.Debug().Msg("出力されない")
		logger.Info().Msg("出力される")

		if bytes.Contains(buf.Bytes(), []byte("出力されない")) {
			t.Error("debugログが出力された")
		}
		if !bytes.Contains(buf.Bytes(), []byte("出力される")) {
			t.Error("infoログが出力されていない")
		}
	})

	t.Run("console形式ではJSONではない出力になること", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewWithWriter(&buf, "gateway", "info", FormatConsole)
		logger.Info().Msg("console")

		if json.Valid(bytes.TrimSpace(buf.Bytes())) {
			t.Errorf("console形式がJSONで出力された: %s", buf.String())
		}
	})
}
