package engine

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"resty.dev/v3"

	"asrbatch/internal/config"
	"asrbatch/internal/logging"
	"asrbatch/internal/services"
	"asrbatch/internal/transcript"
)

// KuaiShouName is the canonical name of the KuaiShou engine.
const KuaiShouName = "kuaishou"

type kuaishouResponse struct {
	Result  int    `json:"result"`
	Message string `json:"message"`
	Data    *struct {
		Text []struct {
			StartTime float64 `json:"start_time"`
			EndTime   float64 `json:"end_time"`
			Text      string  `json:"text"`
		} `json:"text"`
	} `json:"data"`
}

// KuaiShou posts the audio in a single multipart request.
type KuaiShou struct {
	client *resty.Client
	logger *slog.Logger
}

// NewKuaiShou builds a KuaiShou client.
func NewKuaiShou(settings config.CloudEngine, logger *slog.Logger) *KuaiShou {
	return &KuaiShou{
		client: newHTTPClient(settings.BaseURL),
		logger: logging.NewComponentLogger(logger, "kuaishou"),
	}
}

func newKuaiShouFromConfig(cfg *config.Config, logger *slog.Logger) (Backend, error) {
	return NewKuaiShou(cfg.Engines.KuaiShou, logger), nil
}

func (k *KuaiShou) Name() string { return KuaiShouName }

func (k *KuaiShou) Close() error { return k.client.Close() }

func (k *KuaiShou) Transcribe(ctx context.Context, audioPath string) (transcript.Result, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return transcript.Result{}, services.Wrap(services.ErrNotFound, KuaiShouName, "read audio", "Could not read audio", err)
	}

	var body kuaishouResponse
	resp, err := k.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"typeId": "1"}).
		SetFile("file", audioPath).
		SetResult(&body).
		Post("/subtitle_generate")
	if err := checkResponse(KuaiShouName, "generate subtitles", resp, err); err != nil {
		return transcript.Result{}, err
	}
	if body.Data == nil {
		message := body.Message
		if message == "" {
			message = "Response carried no data"
		}
		return transcript.Result{}, services.Wrap(services.ErrBackendRejected, KuaiShouName, "generate subtitles", message, nil)
	}

	result := transcript.Result{Engine: KuaiShouName, ResponseID: uuid.NewString()}
	if id := resp.Header().Get("X-Request-Id"); id != "" {
		result.ResponseID = id
	}
	for _, item := range body.Data.Text {
		result.Segments = append(result.Segments, transcript.Segment{
			Start: seconds(item.StartTime),
			End:   seconds(item.EndTime),
			Text:  item.Text,
		})
	}
	logging.WithContext(ctx, k.logger).Debug("kuaishou subtitles received", logging.Int("segments", len(result.Segments)))
	return result, nil
}
