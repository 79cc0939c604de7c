// Package commands implements the rehabctl command tree.
package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"speech-rehab-service/internal/app"
	"speech-rehab-service/internal/config"
	"speech-rehab-service/internal/service/analysis"
)

var (
	Root = &cobra.Command{
		Use:           "rehabctl",
		Short:         "Pronunciation analysis client",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	Analyze = &cobra.Command{
		Use:   "analyze <audio-file>",
		Short: "Run the analysis pipeline locally on a recording",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeLocal,
	}

	Submit = &cobra.Command{
		Use:   "submit <audio-file>",
		Short: "Send a recording to a running server",
		Args:  cobra.ExactArgs(1),
		RunE:  submit,
	}

	Languages = &cobra.Command{
		Use:   "languages",
		Short: "List the languages a running server has engines for",
		Args:  cobra.ExactArgs(0),
		RunE:  languages,
	}

	SetLanguage = &cobra.Command{
		Use:   "set-language <tag>",
		Short: "Switch the server's active language",
		Args:  cobra.ExactArgs(1),
		RunE:  setLanguage,
	}
)

func init() {
	Root.PersistentFlags().String("server", "http://localhost:8080", "server base URL")
	Root.PersistentFlags().Duration("timeout", 60*time.Second, "request timeout")

	for _, cmd := range []*cobra.Command{Analyze, Submit} {
		cmd.Flags().StringP("reference", "r", "", "reference text the speaker was asked to say")
		cmd.Flags().StringP("language", "l", "", "language tag, defaults to the active language")
		cmd.Flags().StringP("user", "u", "", "user ID")
		_ = cmd.MarkFlagRequired("reference")
	}

	Root.AddCommand(Analyze, Submit, Languages, SetLanguage)
}

func analyzeLocal(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}

	cfg := config.Load()
	cfg.Kafka.Enabled = false
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.Observability.LogLevel = "error"
	}

	application := app.New(cfg)
	defer func() { _ = application.Shutdown() }()
	if err := application.Start(ctx); err != nil {
		return err
	}

	reference, _ := cmd.Flags().GetString("reference")
	language, _ := cmd.Flags().GetString("language")
	user, _ := cmd.Flags().GetString("user")

	report := application.Analyzer.Analyze(ctx, analysis.Request{
		Audio:         data,
		Format:        filepath.Ext(args[0]),
		ReferenceText: reference,
		Language:      language,
		UserID:        user,
	})
	return printJSON(cmd.OutOrStdout(), report)
}

func submit(cmd *cobra.Command, args []string) error {
	reference, _ := cmd.Flags().GetString("reference")
	language, _ := cmd.Flags().GetString("language")
	user, _ := cmd.Flags().GetString("user")

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	body, contentType, err := multipartBody(f, filepath.Base(args[0]), map[string]string{
		"reference_text": reference,
		"language":       language,
		"user_id":        user,
	})
	if err != nil {
		return err
	}
	return do(cmd, http.MethodPost, "/v1/speech/analyze", contentType, body)
}

func languages(cmd *cobra.Command, _ []string) error {
	return do(cmd, http.MethodGet, "/v1/speech/languages", "", nil)
}

func setLanguage(cmd *cobra.Command, args []string) error {
	payload, err := json.Marshal(map[string]string{"language": args[0]})
	if err != nil {
		return err
	}
	return do(cmd, http.MethodPost, "/v1/speech/language", "application/json", bytes.NewReader(payload))
}

// multipartBody builds the analyze form. Empty fields are omitted.
func multipartBody(audio io.Reader, filename string, fields map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	fw, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(fw, audio); err != nil {
		return nil, "", fmt.Errorf("copy audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// do sends a request to the server and pretty-prints the JSON response.
func do(cmd *cobra.Command, method, path, contentType string, body io.Reader) error {
	server, _ := cmd.Flags().GetString("server")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(server, "/")+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		_, _ = cmd.OutOrStdout().Write(raw)
	} else if err := printJSON(cmd.OutOrStdout(), v); err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: server returned %s", method, path, resp.Status)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
