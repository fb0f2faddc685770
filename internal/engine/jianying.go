package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"resty.dev/v3"

	"asrbatch/internal/config"
	"asrbatch/internal/logging"
	"asrbatch/internal/services"
	"asrbatch/internal/transcript"
)

// JianYingName is the canonical name of the JianYing engine.
const JianYingName = "jianying"

const (
	jianyingAppVersion = "5.8.0"
	jianyingPlatform   = "4"

	jianyingUploadPath = "/lv/v1/audio_subtitle/upload"
	jianyingSubmitPath = "/lv/v1/audio_subtitle/submit"
	jianyingQueryPath  = "/lv/v1/audio_subtitle/query"

	jianyingStatusDone   = "success"
	jianyingStatusFailed = "failed"
)

type jianyingEnvelope[T any] struct {
	Ret    string `json:"ret"`
	ErrMsg string `json:"errmsg"`
	Data   T      `json:"data"`
}

type jianyingSignature struct {
	Sign       string `json:"sign"`
	DeviceTime int64  `json:"device_time"`
}

type jianyingQueryData struct {
	Status     string `json:"status"`
	Utterances []struct {
		StartTime int64  `json:"start_time"`
		EndTime   int64  `json:"end_time"`
		Text      string `json:"text"`
	} `json:"utterances"`
}

// JianYing uploads audio to the JianYing subtitle service. Every request is
// signed through an external signing endpoint because the client secret is
// not distributable.
type JianYing struct {
	client       *resty.Client
	signer       *resty.Client
	signURL      string
	deviceID     string
	pollInterval time.Duration
	pollAttempts int
	logger       *slog.Logger
}

// NewJianYing builds a JianYing client. signURL is required.
func NewJianYing(settings config.JianYing, logger *slog.Logger) (*JianYing, error) {
	if strings.TrimSpace(settings.SignURL) == "" {
		return nil, services.Wrap(services.ErrConfiguration, JianYingName, "configure",
			"engines.jianying.sign_url is required (or set ASRBATCH_JIANYING_SIGN_URL)", nil)
	}
	signer := resty.New()
	signer.SetHeader("User-Agent", config.UserAgent)
	signer.SetTimeout(defaultRequestTimeout)
	return &JianYing{
		client:       newHTTPClient(settings.BaseURL),
		signer:       signer,
		signURL:      settings.SignURL,
		deviceID:     uuid.NewString(),
		pollInterval: settings.PollInterval(),
		pollAttempts: settings.PollAttempts,
		logger:       logging.NewComponentLogger(logger, "jianying"),
	}, nil
}

func newJianYingFromConfig(cfg *config.Config, logger *slog.Logger) (Backend, error) {
	return NewJianYing(cfg.Engines.JianYing, logger)
}

func (j *JianYing) Name() string { return JianYingName }

func (j *JianYing) Close() error {
	return errors.Join(j.client.Close(), j.signer.Close())
}

func (j *JianYing) Transcribe(ctx context.Context, audioPath string) (transcript.Result, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return transcript.Result{}, services.Wrap(services.ErrNotFound, JianYingName, "read audio", "Could not read audio", err)
	}

	uploadReq, err := j.signed(ctx, jianyingUploadPath)
	if err != nil {
		return transcript.Result{}, err
	}
	var uploaded jianyingEnvelope[struct {
		URL string `json:"url"`
	}]
	resp, err := uploadReq.
		SetFile("file", audioPath).
		SetResult(&uploaded).
		Post(jianyingUploadPath)
	if err := checkJianYing("upload", resp, err, uploaded.Ret, uploaded.ErrMsg); err != nil {
		return transcript.Result{}, err
	}
	if uploaded.Data.URL == "" {
		return transcript.Result{}, services.Wrap(services.ErrBackendRejected, JianYingName, "upload", "Service returned no audio URL", nil)
	}

	submitReq, err := j.signed(ctx, jianyingSubmitPath)
	if err != nil {
		return transcript.Result{}, err
	}
	var submitted jianyingEnvelope[struct {
		ID string `json:"id"`
	}]
	resp, err = submitReq.
		SetBody(map[string]any{
			"adjust_endtime":    200,
			"audio":             uploaded.Data.URL,
			"caption_type":      2,
			"client_request_id": uuid.NewString(),
			"max_lines":         1,
			"words_per_line":    16,
		}).
		SetResult(&submitted).
		Post(jianyingSubmitPath)
	if err := checkJianYing("submit", resp, err, submitted.Ret, submitted.ErrMsg); err != nil {
		return transcript.Result{}, err
	}
	taskID := submitted.Data.ID
	if taskID == "" {
		return transcript.Result{}, services.Wrap(services.ErrBackendRejected, JianYingName, "submit", "Service returned no task id", nil)
	}
	logging.WithContext(ctx, j.logger).Debug("jianying task submitted", logging.String("task_id", taskID))

	var data jianyingQueryData
	err = poll(ctx, JianYingName, j.pollInterval, j.pollAttempts, func() (bool, error) {
		queryReq, err := j.signed(ctx, jianyingQueryPath)
		if err != nil {
			return false, err
		}
		var queried jianyingEnvelope[jianyingQueryData]
		resp, err := queryReq.
			SetBody(map[string]any{"id": taskID, "pack_options": map[string]bool{"need_attribute": true}}).
			SetResult(&queried).
			Post(jianyingQueryPath)
		if err := checkJianYing("query", resp, err, queried.Ret, queried.ErrMsg); err != nil {
			return false, err
		}
		switch strings.ToLower(queried.Data.Status) {
		case jianyingStatusDone:
			data = queried.Data
			return true, nil
		case jianyingStatusFailed:
			return false, services.Wrap(services.ErrBackendRejected, JianYingName, "query",
				fmt.Sprintf("Task %s failed", taskID), nil)
		default:
			return false, nil
		}
	})
	if err != nil {
		return transcript.Result{}, err
	}

	result := transcript.Result{Engine: JianYingName, ResponseID: taskID}
	for _, u := range data.Utterances {
		result.Segments = append(result.Segments, transcript.Segment{
			Start: millis(u.StartTime),
			End:   millis(u.EndTime),
			Text:  u.Text,
		})
	}
	return result, nil
}

// signed fetches a signature for path and returns a request carrying the
// signing headers.
func (j *JianYing) signed(ctx context.Context, path string) (*resty.Request, error) {
	var sig jianyingSignature
	resp, err := j.signer.R().
		SetContext(ctx).
		SetBody(map[string]any{"path": path, "device_id": j.deviceID}).
		SetResult(&sig).
		Post(j.signURL)
	if err := checkResponse(JianYingName, "sign request", resp, err); err != nil {
		return nil, err
	}
	if sig.Sign == "" {
		return nil, services.Wrap(services.ErrBackendUnavailable, JianYingName, "sign request", "Signing endpoint returned no signature", nil)
	}
	if sig.DeviceTime == 0 {
		sig.DeviceTime = time.Now().Unix()
	}
	return j.client.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"appvr":       jianyingAppVersion,
			"pf":          jianyingPlatform,
			"tdid":        j.deviceID,
			"sign":        sig.Sign,
			"device-time": strconv.FormatInt(sig.DeviceTime, 10),
		}), nil
}

func checkJianYing(operation string, resp *resty.Response, err error, ret, message string) error {
	if err := checkResponse(JianYingName, operation, resp, err); err != nil {
		return err
	}
	if ret != "" && ret != "0" {
		return services.Wrap(services.ErrBackendRejected, JianYingName, operation,
			fmt.Sprintf("Service ret %s: %s", ret, strings.TrimSpace(message)), nil)
	}
	return nil
}
