package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/camp-occupancy/internal/application"
	"github.com/example/camp-occupancy/internal/logging"
)

var (
	errBadRequestBody      = errors.New("Geçersiz istek gövdesi.")
	errInvalidCampID       = errors.New("Geçersiz kamp kimliği.")
	errInvalidRoomID       = errors.New("Geçersiz oda kimliği.")
	errInvalidWorkerID     = errors.New("Geçersiz çalışan kimliği.")
	errMissingSessionToken = errors.New("Oturum anahtarı belirtilmelidir.")
)

// Error codes surfaced to clients alongside the localized message.
const (
	codeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	codeSessionExpired     = "AUTH_SESSION_EXPIRED"
	codeInvalidSession     = "AUTH_INVALID_SESSION"
	codeForbidden          = "AUTH_FORBIDDEN"
	codeAccessUndetermined = "ACCESS_UNDETERMINED"
	codeNotFound           = "NOT_FOUND"
	codeAlreadyExists      = "ALREADY_EXISTS"
	codeCapacityExceeded   = "CAPACITY_EXCEEDED"
	codeValidation         = "VALIDATION_FAILED"
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	switch {
	case errors.Is(err, application.ErrInvalidCredentials):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: codeInvalidCredentials,
			Message:   "E-posta adresi veya parola hatalı.",
		})
	case errors.Is(err, application.ErrSessionExpired):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: codeSessionExpired,
			Message:   "Oturumun süresi doldu. Lütfen tekrar giriş yapın.",
		})
	case errors.Is(err, application.ErrAccessUndetermined):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: codeAccessUndetermined,
			Message:   "Erişim yetkiniz belirlenemedi.",
		})
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: codeForbidden,
			Message:   "Bu işlemi gerçekleştirme yetkiniz yok.",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			ErrorCode: codeNotFound,
			Message:   "İstenen kayıt bulunamadı.",
		})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: codeAlreadyExists,
			Message:   "Kayıt zaten mevcut.",
		})
	case errors.Is(err, application.ErrCapacityExceeded):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: codeCapacityExceeded,
			Message:   "Odada boş yatak kalmadı.",
		})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				ErrorCode: codeValidation,
				Message:   "Girilen bilgilerde hata var.",
				Errors:    localizeValidationErrors(vErr),
			})
			return
		}

		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "Sunucuda beklenmeyen bir hata oluştu."})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "İstek içeriği hatalı."
	case http.StatusUnauthorized:
		return "Kimlik doğrulaması gerekli."
	case http.StatusForbidden:
		return "Bu işlemi gerçekleştirme yetkiniz yok."
	case http.StatusNotFound:
		return "İstenen kayıt bulunamadı."
	case http.StatusMethodNotAllowed:
		return "Bu yöntem desteklenmiyor."
	case http.StatusConflict:
		return "İstek, kaydın mevcut durumuyla çakışıyor."
	case http.StatusUnprocessableEntity:
		return "Girilen bilgilerde hata var."
	default:
		return "Sunucuda beklenmeyen bir hata oluştu."
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "name is required":
		return "Ad zorunludur."
	case "site is required":
		return "Şantiye zorunludur."
	case "site cannot be changed":
		return "Kampın şantiyesi değiştirilemez."
	case "email is invalid":
		return "E-posta adresi geçersiz."
	case "permission must be read or write":
		return "Yetki read veya write olmalıdır."
	case "owner cannot leave own camp":
		return "Kamp sahibi kendi kampından ayrılamaz."
	case "number is required":
		return "Oda numarası zorunludur."
	case "capacity must be positive":
		return "Kapasite pozitif bir tam sayı olmalıdır."
	case "project is required":
		return "Proje zorunludur."
	case "room number already exists in camp":
		return "Bu oda numarası kampta zaten kullanılıyor."
	case "at least one room is required":
		return "En az bir oda belirtilmelidir."
	case "first name is required":
		return "İsim zorunludur."
	case "last name is required":
		return "Soyisim zorunludur."
	case "room does not belong to camp":
		return "Oda bu kampa ait değil."
	case "worker is already in this room":
		return "Çalışan zaten bu odada kalıyor."
	case "at least one worker is required":
		return "En az bir çalışan belirtilmelidir."
	case "exactly one of camp_id or site is required":
		return "camp_id veya site alanlarından yalnızca biri belirtilmelidir."
	case "record violates a constraint":
		return "Kayıt bir bütünlük kısıtını ihlal ediyor."
	default:
		if rest, ok := strings.CutPrefix(message, "capacity is below current occupancy of"); ok {
			return "Kapasite mevcut doluluğun altında kalamaz: " + strings.TrimSpace(rest)
		}
		if rest, ok := strings.CutPrefix(message, "duplicates row"); ok {
			return "Aynı kayıt " + strings.TrimSpace(rest) + " numaralı satırda da var."
		}
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
