// Package tmaauth реализует HTTP-обработчик входа в Mini App по initData.
//
// initData принимается из заголовка Authorization: tma <initData> или из JSON-тела
// {"init_data": "..."}. Заголовок имеет приоритет.
package tmaauth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/tma-fitness/internal/http/response"
	"github.com/magabrotheeeer/tma-fitness/internal/lib/jwt"
	"github.com/magabrotheeeer/tma-fitness/internal/lib/sl"
	"github.com/magabrotheeeer/tma-fitness/internal/lib/tma"
	"github.com/magabrotheeeer/tma-fitness/internal/models"
	authservice "github.com/magabrotheeeer/tma-fitness/internal/services/auth"
)

const authScheme = "tma"

// maxBodyBytes ограничивает тело запроса.
const maxBodyBytes = 16 << 10

// Request — тело запроса, если initData передаётся не в заголовке.
type Request struct {
	InitData string `json:"init_data" validate:"required,max=8192"`
}

// Data — полезная нагрузка успешного ответа.
type Data struct {
	User    models.PublicUser `json:"user"`
	Tokens  jwt.TokenPair     `json:"tokens"`
	Created bool              `json:"created"`
}

// Service описывает вход по initData.
type Service interface {
	AuthenticateTMA(ctx context.Context, raw string) (*authservice.Result, error)
}

// Handler обрабатывает POST /auth/tma.
type Handler struct {
	log      *slog.Logger
	auth     Service
	validate *validator.Validate
}

// New создает Handler.
func New(log *slog.Logger, auth Service) *Handler {
	return &Handler{
		log:      log,
		auth:     auth,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Вход по initData Telegram Mini App
// @Description Проверяет подпись и свежесть initData, находит или создаёт аккаунт и выдаёт пару JWT.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param Authorization header string false "tma <initData>"
// @Param request body Request false "initData в теле запроса"
// @Success 200 {object} response.Response{data=Data} "Успешный вход"
// @Failure 400 {object} response.ErrorResponse "Некорректные или отсутствующие initData"
// @Failure 401 {object} response.ErrorResponse "Неверная подпись или устаревшие initData"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/tma [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.tmaauth"

	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	raw, resp, status := h.initData(r)
	if status != 0 {
		log.Info("init data rejected before validation", slog.String("code", resp.Code))
		render.Status(r, status)
		render.JSON(w, r, resp)
		return
	}

	result, err := h.auth.AuthenticateTMA(r.Context(), raw)
	if err != nil {
		resp, status := mapError(err)
		if status == http.StatusInternalServerError {
			log.Error("authentication failed", sl.Err(err))
		} else {
			log.Info("init data rejected", slog.String("code", resp.Code))
		}
		render.Status(r, status)
		render.JSON(w, r, resp)
		return
	}

	log.Info("login success", slog.String("user_uid", result.User.UID), slog.Bool("created", result.Created))
	render.JSON(w, r, response.OKWithData(Data{
		User:    result.User.Public(),
		Tokens:  result.Tokens,
		Created: result.Created,
	}))
}

// initData достаёт initData из заголовка или тела. При ошибке возвращает ответ и статус.
func (h *Handler) initData(r *http.Request) (string, response.Response, int) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, value, _ := strings.Cut(header, " ")
		if strings.EqualFold(scheme, authScheme) {
			value = strings.TrimSpace(value)
			if value == "" {
				return "", response.Error(response.CodeMissingInitData, "empty init data in authorization header"), http.StatusBadRequest
			}
			return value, response.Response{}, 0
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return "", response.Error(response.CodeMalformedPayload, "failed to read request body"), http.StatusBadRequest
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", missingInitData(), http.StatusBadRequest
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return "", response.Error(response.CodeMalformedPayload, "invalid request body"), http.StatusBadRequest
	}
	req.InitData = strings.TrimSpace(req.InitData)
	if req.InitData == "" {
		return "", missingInitData(), http.StatusBadRequest
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return "", response.ValidationError(verrs), http.StatusBadRequest
		}
		return "", response.Error(response.CodeMalformedPayload, "invalid request body"), http.StatusBadRequest
	}
	return req.InitData, response.Response{}, 0
}

func missingInitData() response.Response {
	return response.Error(response.CodeMissingInitData, "init data is required: use Authorization: tma <initData> or {\"init_data\": ...}")
}

// mapError переводит ошибку входа в ответ. Текст ошибки наружу не отдаётся.
func mapError(err error) (response.Response, int) {
	switch {
	case errors.Is(err, tma.ErrMalformedPayload):
		return response.Error(response.CodeMalformedPayload, "init data is malformed"), http.StatusBadRequest
	case errors.Is(err, tma.ErrMissingIdentity):
		return response.Error(response.CodeMissingIdentity, "user id is required"), http.StatusBadRequest
	case errors.Is(err, tma.ErrInvalidSignature):
		return response.Error(response.CodeInvalidSignature, "init data signature is invalid"), http.StatusUnauthorized
	case errors.Is(err, tma.ErrExpired):
		return response.Error(response.CodeExpired, "init data expired"), http.StatusUnauthorized
	default:
		return response.Error(response.CodeInternal, "internal server error"), http.StatusInternalServerError
	}
}
