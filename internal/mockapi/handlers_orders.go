package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
)

const (
	msgInvalidJSON  = "Malformed JSON body"
	msgInvalidID    = "Invalid order id"
	msgOrderMissing = "Order not found"
)

func (s *Server) handleListOrders(w http.ResponseWriter, _ *http.Request) {
	orders, err := s.orders.List()
	if err != nil {
		s.internalError(w, err, "list orders")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	order, err := s.orders.Get(id)
	if err != nil {
		s.repoError(w, err, "get order")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var in domain.CreateOrder
	if !decodeBody(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		writeMessage(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.orders.Create(domain.NewOrder(in))
	if err != nil {
		s.internalError(w, err, "create order")
		return
	}

	s.publish(r.Context(), domain.OrderEventCreated, created)
	writeJSON(w, http.StatusCreated, created)
}

// handlePatchOrder сливает присланные поля с сохранённым заказом.
func (s *Server) handlePatchOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var patch domain.OrderPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	s.applyUpdate(w, r, id, patch)
}

// handleReplaceOrder обрабатывает PUT, все поля обязательны.
func (s *Server) handleReplaceOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var in domain.UpdateOrder
	if !decodeBody(w, r, &in) {
		return
	}
	in.ID = id
	if err := in.Validate(); err != nil {
		writeMessage(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.applyUpdate(w, r, id, in.Patch())
}

func (s *Server) applyUpdate(w http.ResponseWriter, r *http.Request, id int64, patch domain.OrderPatch) {
	current, err := s.orders.Get(id)
	if err != nil {
		s.repoError(w, err, "load order for update")
		return
	}

	updated := patch.Apply(current)
	updated.ID = id
	if err := updated.Validate(); err != nil {
		writeMessage(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.orders.Save(updated); err != nil {
		s.repoError(w, err, "save order")
		return
	}

	s.publish(r.Context(), domain.OrderEventUpdated, updated)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	order, err := s.orders.Get(id)
	if err != nil {
		s.repoError(w, err, "load order for delete")
		return
	}
	if err := s.orders.Delete(id); err != nil {
		s.repoError(w, err, "delete order")
		return
	}

	s.publish(r.Context(), domain.OrderEventDeleted, order)
	w.WriteHeader(http.StatusNoContent)
}

// publish не влияет на ответ клиенту: ошибка брокера только логируется.
func (s *Server) publish(ctx context.Context, eventType domain.OrderEventType, order domain.Order) {
	if err := s.publisher.PublishOrderEvent(ctx, eventType, order); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   order.ID,
		}).Warn("failed to publish order event")
	}
}

func (s *Server) repoError(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, domain.ErrOrderNotFound) {
		writeMessage(w, http.StatusNotFound, msgOrderMissing)
		return
	}
	s.internalError(w, err, op)
}

func (s *Server) internalError(w http.ResponseWriter, err error, op string) {
	s.logger.WithError(err).WithField("op", op).Error("repository call failed")
	writeMessage(w, http.StatusInternalServerError, msgInternal)
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusBadRequest, msgInvalidID)
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, msgInvalidJSON)
		return false
	}
	return true
}
