package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"resty.dev/v3"

	"asrbatch/internal/config"
	"asrbatch/internal/logging"
	"asrbatch/internal/services"
	"asrbatch/internal/transcript"
)

// BcutName is the canonical name of the Bilibili Bcut engine.
const BcutName = "bcut"

const (
	bcutModelID        = "8"
	bcutStateFailed    = 3
	bcutStateCompleted = 4
)

type bcutEnvelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type bcutCreateData struct {
	InBossKey  string   `json:"in_boss_key"`
	ResourceID string   `json:"resource_id"`
	UploadID   string   `json:"upload_id"`
	UploadURLs []string `json:"upload_urls"`
	PerSize    int      `json:"per_size"`
}

type bcutCompleteData struct {
	DownloadURL string `json:"download_url"`
}

type bcutTaskData struct {
	TaskID string `json:"task_id"`
}

type bcutResultData struct {
	State  int    `json:"state"`
	Remark string `json:"remark"`
	Result string `json:"result"`
}

type bcutUtterances struct {
	Utterances []struct {
		StartTime  int64  `json:"start_time"`
		EndTime    int64  `json:"end_time"`
		Transcript string `json:"transcript"`
	} `json:"utterances"`
}

// Bcut uploads audio to Bilibili's Bcut service and polls for the result.
type Bcut struct {
	client       *resty.Client
	pollInterval time.Duration
	pollAttempts int
	logger       *slog.Logger
}

// NewBcut builds a Bcut client against baseURL.
func NewBcut(settings config.CloudEngine, logger *slog.Logger) *Bcut {
	return &Bcut{
		client:       newHTTPClient(settings.BaseURL),
		pollInterval: settings.PollInterval(),
		pollAttempts: settings.PollAttempts,
		logger:       logging.NewComponentLogger(logger, "bcut"),
	}
}

func newBcutFromConfig(cfg *config.Config, logger *slog.Logger) (Backend, error) {
	return NewBcut(cfg.Engines.Bcut, logger), nil
}

func (b *Bcut) Name() string { return BcutName }

// Close releases idle HTTP connections.
func (b *Bcut) Close() error { return b.client.Close() }

func (b *Bcut) Transcribe(ctx context.Context, audioPath string) (transcript.Result, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return transcript.Result{}, services.Wrap(services.ErrNotFound, BcutName, "read audio", "Could not read audio", err)
	}
	logger := logging.WithContext(ctx, b.logger)

	upload, err := b.createResource(ctx, filepath.Base(audioPath), len(data))
	if err != nil {
		return transcript.Result{}, err
	}
	etags, err := b.uploadParts(ctx, upload, data)
	if err != nil {
		return transcript.Result{}, err
	}
	downloadURL, err := b.completeUpload(ctx, upload, etags)
	if err != nil {
		return transcript.Result{}, err
	}
	taskID, err := b.createTask(ctx, downloadURL)
	if err != nil {
		return transcript.Result{}, err
	}
	logger.Debug("bcut task submitted", logging.String("task_id", taskID), logging.Int("parts", len(etags)))

	var payload string
	err = poll(ctx, BcutName, b.pollInterval, b.pollAttempts, func() (bool, error) {
		var env bcutEnvelope[bcutResultData]
		resp, err := b.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{"model_id": bcutModelID, "task_id": taskID}).
			SetResult(&env).
			Get("/task/result")
		if err := checkEnvelope(BcutName, "query result", resp, err, env.Code, env.Message); err != nil {
			return false, err
		}
		switch env.Data.State {
		case bcutStateCompleted:
			payload = env.Data.Result
			return true, nil
		case bcutStateFailed:
			return false, services.Wrap(services.ErrBackendRejected, BcutName, "query result",
				fmt.Sprintf("Task %s failed: %s", taskID, strings.TrimSpace(env.Data.Remark)), nil)
		default:
			return false, nil
		}
	})
	if err != nil {
		return transcript.Result{}, err
	}

	var utterances bcutUtterances
	if err := json.Unmarshal([]byte(payload), &utterances); err != nil {
		return transcript.Result{}, services.Wrap(services.ErrBackendRejected, BcutName, "decode result", "Result payload is not valid JSON", err)
	}
	result := transcript.Result{Engine: BcutName, ResponseID: taskID}
	for _, u := range utterances.Utterances {
		result.Segments = append(result.Segments, transcript.Segment{
			Start: millis(u.StartTime),
			End:   millis(u.EndTime),
			Text:  u.Transcript,
		})
	}
	return result, nil
}

func (b *Bcut) createResource(ctx context.Context, name string, size int) (bcutCreateData, error) {
	var env bcutEnvelope[bcutCreateData]
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"type":             2,
			"name":             name,
			"size":             size,
			"ResourceFileType": "mp3",
			"model_id":         bcutModelID,
		}).
		SetResult(&env).
		Post("/resource/create")
	if err := checkEnvelope(BcutName, "create resource", resp, err, env.Code, env.Message); err != nil {
		return bcutCreateData{}, err
	}
	if len(env.Data.UploadURLs) == 0 || env.Data.PerSize <= 0 {
		return bcutCreateData{}, services.Wrap(services.ErrBackendRejected, BcutName, "create resource", "Service returned no upload slots", nil)
	}
	return env.Data, nil
}

func (b *Bcut) uploadParts(ctx context.Context, upload bcutCreateData, data []byte) ([]string, error) {
	if upload.PerSize <= 0 || len(upload.UploadURLs)*upload.PerSize < len(data) {
		return nil, services.Wrap(services.ErrBackendRejected, BcutName, "upload audio",
			fmt.Sprintf("Upload slots cover %d of %d bytes", max(upload.PerSize, 0)*len(upload.UploadURLs), len(data)), nil)
	}
	etags := make([]string, 0, len(upload.UploadURLs))
	for i, url := range upload.UploadURLs {
		start := i * upload.PerSize
		if start >= len(data) {
			break
		}
		end := min(start+upload.PerSize, len(data))
		resp, err := b.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/octet-stream").
			SetBody(data[start:end]).
			Put(url)
		if err := checkResponse(BcutName, fmt.Sprintf("upload part %d", i+1), resp, err); err != nil {
			return nil, err
		}
		etags = append(etags, strings.Trim(resp.Header().Get("Etag"), `"`))
	}
	return etags, nil
}

func (b *Bcut) completeUpload(ctx context.Context, upload bcutCreateData, etags []string) (string, error) {
	var env bcutEnvelope[bcutCompleteData]
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"InBossKey":  upload.InBossKey,
			"ResourceId": upload.ResourceID,
			"Etags":      strings.Join(etags, ","),
			"UploadId":   upload.UploadID,
			"model_id":   bcutModelID,
		}).
		SetResult(&env).
		Post("/resource/create/complete")
	if err := checkEnvelope(BcutName, "complete upload", resp, err, env.Code, env.Message); err != nil {
		return "", err
	}
	if env.Data.DownloadURL == "" {
		return "", services.Wrap(services.ErrBackendRejected, BcutName, "complete upload", "Service returned no resource URL", nil)
	}
	return env.Data.DownloadURL, nil
}

func (b *Bcut) createTask(ctx context.Context, resource string) (string, error) {
	var env bcutEnvelope[bcutTaskData]
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"resource": resource, "model_id": bcutModelID}).
		SetResult(&env).
		Post("/task")
	if err := checkEnvelope(BcutName, "create task", resp, err, env.Code, env.Message); err != nil {
		return "", err
	}
	if env.Data.TaskID == "" {
		return "", services.Wrap(services.ErrBackendRejected, BcutName, "create task", "Service returned no task id", nil)
	}
	return env.Data.TaskID, nil
}

// checkEnvelope applies checkResponse and then the service-level code carried
// in the JSON body.
func checkEnvelope(engine, operation string, resp *resty.Response, err error, code int, message string) error {
	if err := checkResponse(engine, operation, resp, err); err != nil {
		return err
	}
	if code != 0 {
		return services.Wrap(services.ErrBackendRejected, engine, operation,
			fmt.Sprintf("Service code %d: %s", code, strings.TrimSpace(message)), nil)
	}
	return nil
}
