package main

import (
	"net/http"
	"strconv"

	"github.com/PaulBabatuyi/finance-organizer/internal/data"
	"github.com/PaulBabatuyi/finance-organizer/internal/finance"
	"github.com/PaulBabatuyi/finance-organizer/internal/normalize"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

type categoryRequest struct {
	Name string `json:"name" binding:"required"`
	Icon string `json:"icon"`
	Type string `json:"type" binding:"required"`
}

type transactionRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        string          `json:"date" binding:"required"`
	Category    string          `json:"category" binding:"required"`
	Type        string          `json:"type" binding:"required"`
}

type settingsRequest struct {
	Currency string `json:"currency" binding:"required"`
}

func (s *Server) listCategories(c *gin.Context) {
	cats, err := s.finance.ListCategories(c.Request.Context(), callerID(c), c.Query("type"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]categoryView, 0, len(cats))
	for _, cat := range cats {
		out = append(out, newCategoryView(cat))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) postCategory(c *gin.Context) {
	var req categoryRequest
	if !bindJSON(c, &req) {
		return
	}
	cat, err := s.finance.CreateCategory(c.Request.Context(), callerID(c), req.Name, req.Icon, req.Type)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newCategoryView(cat))
}

func (s *Server) deleteCategory(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
		Type string `json:"type" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := s.finance.DeleteCategory(c.Request.Context(), callerID(c), req.Name, req.Type); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) postTransaction(c *gin.Context) {
	var req transactionRequest
	if !bindJSON(c, &req) {
		return
	}
	date, err := normalize.Date(req.Date)
	if err != nil {
		writeError(c, errors.Wrap(errBadRequest, err.Error()))
		return
	}

	ctx := c.Request.Context()
	tx, err := s.finance.CreateTransaction(ctx, callerID(c), finance.NewTransaction{
		Amount:      req.Amount,
		Description: req.Description,
		Date:        date,
		Category:    req.Category,
		Type:        req.Type,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	view, err := s.finance.View(ctx, callerID(c), tx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// dateRange reads from/to query parameters, answering 400 when invalid.
func (s *Server) dateRange(c *gin.Context) (finance.DateRange, bool) {
	r, err := finance.ParseDateRange(c.Query("from"), c.Query("to"), s.finance.Now())
	if err != nil {
		writeError(c, err)
		return finance.DateRange{}, false
	}
	return r, true
}

func (s *Server) listTransactions(c *gin.Context) {
	r, ok := s.dateRange(c)
	if !ok {
		return
	}
	txs, err := s.finance.ListTransactions(c.Request.Context(), callerID(c), r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

func (s *Server) deleteTransaction(c *gin.Context) {
	id, err := bson.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		writeError(c, errors.Wrapf(data.ErrNotFound, "transaction %q", c.Param("id")))
		return
	}
	if err := s.finance.DeleteTransaction(c.Request.Context(), callerID(c), id); err != nil {
		writeError(c, err, zap.String("transaction_id", id.Hex()))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) balance(c *gin.Context) {
	r, ok := s.dateRange(c)
	if !ok {
		return
	}
	out, err := s.finance.Balance(c.Request.Context(), callerID(c), r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) categoryStats(c *gin.Context) {
	r, ok := s.dateRange(c)
	if !ok {
		return
	}
	out, err := s.finance.CategoryStats(c.Request.Context(), callerID(c), r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) historyPeriods(c *gin.Context) {
	years, err := s.finance.Periods(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"years": years})
}

func (s *Server) history(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		writeError(c, errors.Wrap(errBadRequest, "year must be a number"))
		return
	}
	month := 0
	if m := c.Query("month"); m != "" {
		if month, err = strconv.Atoi(m); err != nil {
			writeError(c, errors.Wrap(errBadRequest, "month must be a number"))
			return
		}
	}
	buckets, err := s.finance.History(c.Request.Context(), callerID(c), c.DefaultQuery("timeframe", finance.TimeframeYear), year, month)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buckets)
}

func (s *Server) getSettings(c *gin.Context) {
	st, err := s.finance.Settings(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, settingsView{Currency: st.Currency})
}

func (s *Server) putSettings(c *gin.Context) {
	var req settingsRequest
	if !bindJSON(c, &req) {
		return
	}
	st, err := s.finance.UpdateCurrency(c.Request.Context(), callerID(c), req.Currency)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, settingsView{Currency: st.Currency})
}
