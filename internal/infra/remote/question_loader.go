package remote

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"timed-quiz/internal/domain"
)

const (
	defaultPageSize   = 100
	defaultTimeout    = 30 * time.Second
	defaultRetryCount = 3
	objectsPath       = "/api/v2/ontologies/{ontology}/objects/{objectType}"
)

// Config locates the question objects in the ontology service.
type Config struct {
	BaseURL    string
	Ontology   string
	ObjectType string
	Token      string
	PageSize   int
	Timeout    time.Duration
	RetryCount int
}

// QuestionLoader pages through question objects of an ontology objects API.
type QuestionLoader struct {
	cfg    Config
	client *req.Client
	log    *zap.Logger
}

type objectsPage struct {
	Data          []questionObject `json:"data"`
	NextPageToken string           `json:"nextPageToken"`
}

type questionObject struct {
	Question string `json:"question"`
	OptionA  string `json:"optionA"`
	OptionB  string `json:"optionB"`
	OptionC  string `json:"optionC"`
	OptionD  string `json:"optionD"`
	Answer   any    `json:"answer"`
}

func NewQuestionLoader(cfg Config, log *zap.Logger) *QuestionLoader {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryCount < 0 {
		cfg.RetryCount = 0
	}
	if log == nil {
		log = zap.NewNop()
	}

	client := req.C().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal).
		SetCommonHeader("Accept", "application/json").
		SetCommonRetryCount(cfg.RetryCount).
		SetCommonRetryBackoffInterval(10*time.Millisecond, time.Second).
		SetCommonRetryCondition(func(resp *req.Response, err error) bool {
			return err != nil || resp.GetStatusCode() >= http.StatusInternalServerError || resp.GetStatusCode() == http.StatusTooManyRequests
		}).
		SetCommonRetryHook(func(resp *req.Response, err error) {
			if err != nil {
				log.Warn("failed to fetch questions, retrying...", zap.Error(err))
			} else {
				log.Warn("failed to fetch questions, retrying...", zap.Int("status", resp.GetStatusCode()))
			}
		})
	if cfg.Token != "" {
		client.SetCommonBearerAuthToken(cfg.Token)
	}

	return &QuestionLoader{cfg: cfg, client: client, log: log}
}

// LoadQuestions fetches every page in source order, upper-cases answers and
// drops objects without a question or answer.
func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	var (
		questions []domain.Question
		pageToken string
	)
	for {
		page, err := l.fetchPage(ctx, pageToken)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Data {
			questions = append(questions, domain.Question{
				Question:      obj.Question,
				OptionA:       obj.OptionA,
				OptionB:       obj.OptionB,
				OptionC:       obj.OptionC,
				OptionD:       obj.OptionD,
				CorrectAnswer: answerString(obj.Answer),
			})
		}
		if page.NextPageToken == "" || page.NextPageToken == pageToken {
			break
		}
		pageToken = page.NextPageToken
	}

	valid := domain.ValidQuestions(questions)
	l.log.Info("loaded questions from ontology", zap.Int("fetched", len(questions)), zap.Int("valid", len(valid)))
	return valid, nil
}

func (l *QuestionLoader) fetchPage(ctx context.Context, pageToken string) (*objectsPage, error) {
	r := l.client.R().
		SetContext(ctx).
		SetPathParam("ontology", l.cfg.Ontology).
		SetPathParam("objectType", l.cfg.ObjectType).
		SetQueryParam("pageSize", strconv.Itoa(l.cfg.PageSize))
	if pageToken != "" {
		r.SetQueryParam("pageToken", pageToken)
	}

	resp, err := r.Get(objectsPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s objects", l.cfg.ObjectType)
	}
	if resp.GetStatusCode() != http.StatusOK {
		return nil, errors.Errorf("failed to fetch %s objects: status %d", l.cfg.ObjectType, resp.GetStatusCode())
	}
	data, err := resp.ToBytes()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s objects body", l.cfg.ObjectType)
	}
	var page objectsPage
	if err := json.UnmarshalContext(ctx, data, &page); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s objects", l.cfg.ObjectType)
	}
	return &page, nil
}

func answerString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
