package postwin

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// ---- Products ----

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := s.store.ListProducts(r.Context(), userIDFrom(r.Context()), ProductFilter{
		Search:  q.Get("search"),
		Barcode: q.Get("barcode"),
	})
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Barcode       string  `json:"barcode"`
		Name          string  `json:"name"`
		CostPrice     float64 `json:"cost_price"`
		SalePrice     float64 `json:"sale_price"`
		StockQuantity *int    `json:"stock_quantity"`
		Category      string  `json:"category"`
	}
	if err := decodeBody(r, &in); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Name == "" || in.SalePrice <= 0 || in.StockQuantity == nil || *in.StockQuantity < 0 {
		Error(w, http.StatusBadRequest, "Nombre, precio de venta y cantidad son requeridos")
		return
	}
	p := &Product{
		UserID:        userIDFrom(r.Context()),
		Barcode:       in.Barcode,
		Name:          in.Name,
		CostPrice:     in.CostPrice,
		SalePrice:     in.SalePrice,
		StockQuantity: *in.StockQuantity,
		Category:      in.Category,
	}
	if p.Category == "" {
		p.Category = "General"
	}
	if err := s.store.CreateProduct(r.Context(), p); err != nil {
		s.internalError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var patch ProductPatch
	if err := decodeBody(r, &patch); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if patch.StockQuantity != nil && *patch.StockQuantity < 0 {
		Error(w, http.StatusBadRequest, "La cantidad no puede ser negativa")
		return
	}
	err := s.store.UpdateProduct(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "id"), patch)
	if errors.Is(err, ErrNotFound) {
		Error(w, http.StatusNotFound, "Producto no encontrado")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"message": "Producto actualizado"})
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteProduct(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		Error(w, http.StatusNotFound, "Producto no encontrado")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"message": "Producto eliminado"})
}

// ---- Sales ----

func (s *Server) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var req SaleRequest
	if err := decodeBody(r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	sale, err := s.store.CreateSale(r.Context(), userIDFrom(r.Context()), req)
	var stockErr *StockError
	var unknown *UnknownProductError
	switch {
	case err == nil:
		JSON(w, http.StatusOK, sale)
	case errors.Is(err, ErrInvalidSaleItems):
		Error(w, http.StatusBadRequest, "No hay items en la venta")
	case errors.As(err, &stockErr):
		Error(w, http.StatusBadRequest, stockErr.Error())
	case errors.As(err, &unknown):
		Error(w, http.StatusNotFound, unknown.Error())
	default:
		s.internalError(w, r, err)
	}
}

func (s *Server) handleListSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDate(q.Get("start_date"))
	if err != nil {
		Error(w, http.StatusBadRequest, "start_date inválida")
		return
	}
	to, err := parseDate(q.Get("end_date"))
	if err != nil {
		Error(w, http.StatusBadRequest, "end_date inválida")
		return
	}
	out, err := s.store.ListSales(r.Context(), userIDFrom(r.Context()), from, to)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, out)
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, v, time.Local)
}

// ---- Cash register ----

func (s *Server) handleOpenRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		InitialCash *float64 `json:"initial_cash"`
	}
	if err := decodeBody(r, &in); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.InitialCash == nil || *in.InitialCash < 0 {
		Error(w, http.StatusBadRequest, "El fondo inicial es requerido y debe ser mayor o igual a 0")
		return
	}
	u, err := s.store.UserByID(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	cr, err := s.store.OpenRegister(r.Context(), u, *in.InitialCash)
	if errors.Is(err, ErrRegisterOpen) {
		Error(w, http.StatusBadRequest, "Ya existe una caja abierta. Ciérrala antes de abrir una nueva.")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, cr)
}

func (s *Server) handleCurrentRegister(w http.ResponseWriter, r *http.Request) {
	cr, err := s.store.CurrentRegister(r.Context(), userIDFrom(r.Context()))
	if errors.Is(err, ErrNoOpenRegister) {
		JSON(w, http.StatusOK, map[string]any{"cashRegister": nil})
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, cr)
}

func (s *Server) handleMovement(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Amount      float64 `json:"amount"`
			Description string  `json:"description"`
		}
		if err := decodeBody(r, &in); err != nil {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		if in.Amount <= 0 || in.Description == "" {
			Error(w, http.StatusBadRequest, "Monto y descripción son requeridos")
			return
		}
		m, expected, err := s.store.AddMovement(r.Context(), userIDFrom(r.Context()), kind, in.Amount, in.Description)
		if errors.Is(err, ErrNoOpenRegister) {
			Error(w, http.StatusBadRequest, "No hay caja abierta")
			return
		}
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		JSON(w, http.StatusOK, map[string]any{kind: m, "expected_cash": expected})
	}
}

func (s *Server) handleCloseRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ActualCash   *float64 `json:"actual_cash"`
		ClosingNotes *string  `json:"closing_notes"`
	}
	if err := decodeBody(r, &in); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.ActualCash == nil || *in.ActualCash < 0 {
		Error(w, http.StatusBadRequest, "El conteo real es requerido")
		return
	}
	cr, err := s.store.CloseRegister(r.Context(), userIDFrom(r.Context()), *in.ActualCash, in.ClosingNotes)
	if errors.Is(err, ErrNoOpenRegister) {
		Error(w, http.StatusBadRequest, "No hay caja abierta")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, cr)
}

func (s *Server) handleRegisterHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 30
	}
	out, err := s.store.RegisterHistory(r.Context(), userIDFrom(r.Context()), limit)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, out)
}

// ---- Dashboard ----

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, st)
}
