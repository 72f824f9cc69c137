package mockapi

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

type messageBody struct {
	Message string `json:"message"`
}

// writeJSON сериализует payload до отправки заголовков: при ошибке кодирования
// клиент получает 500, а не пустой ответ с исходным статусом.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.WithError(err).WithField("status", status).Error("failed to encode response")
		status = http.StatusInternalServerError
		body, _ = json.Marshal(messageBody{Message: msgInternal})
	}
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageBody{Message: message})
}
