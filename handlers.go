package main

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uinakrani/royalsuppliers-sub002/config"
	"github.com/uinakrani/royalsuppliers-sub002/models"
	"github.com/uinakrani/royalsuppliers-sub002/utils"
	"github.com/uinakrani/royalsuppliers-sub002/workflow"
)

func statusForError(err error) int {
	switch {
	case utils.IsValidation(err):
		return http.StatusBadRequest
	case utils.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrCounterpartyBusy):
		return http.StatusConflict
	case utils.IsTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

/* ledger */

func createLedgerEntryHandler(ledgerFlow *workflow.LedgerWorkflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewLedgerEntry
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}

		entry, err := models.CreateLedgerEntry(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}

		// Fan-out failures never surface here; the entry is already committed.
		ledgerFlow.HandleLedgerEntryCreated(c.Request.Context(), entry)

		c.JSON(http.StatusCreated, entry)
	}
}

func updateLedgerEntryHandler(ledgerFlow *workflow.LedgerWorkflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.UpdateLedgerEntryInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		entry, err := models.UpdateLedgerEntry(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}

		ledgerFlow.HandleLedgerEntryUpdated(c.Request.Context(), entry)

		c.JSON(http.StatusOK, entry)
	}
}

func deleteLedgerEntryHandler(ledgerFlow *workflow.LedgerWorkflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}

		entry, err := models.DeleteLedgerEntry(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}

		ledgerFlow.HandleLedgerEntryDeleted(c.Request.Context(), entry)

		c.JSON(http.StatusOK, entry)
	}
}

func listLedgerEntriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := models.LedgerEntryFilter{
			SupplierName: c.Query("supplier"),
			PartyName:    c.Query("party"),
			Source:       models.LedgerSource(c.Query("source")),
		}
		entries, err := models.GetLedgerEntries(c.Request.Context(), &filter)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}

func getLedgerEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		entry, err := models.GetLedgerEntry(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

func ledgerBalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		balance, err := models.GetLedgerBalance(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"balance": balance})
	}
}

// ledgerFeedHandler streams ledger mutations as server-sent events, backed by
// the Redis feed channel.
func ledgerFeedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		events := models.SubscribeLedger(c.Request.Context())

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")

		c.Stream(func(w io.Writer) bool {
			select {
			case event, open := <-events:
				if !open {
					return false
				}
				c.SSEvent("ledger", event)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}

/* orders */

func createOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewOrder
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}
		order, err := models.CreateOrder(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

func listOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := models.OrderFilter{
			SupplierName: c.Query("supplier"),
			PartyName:    c.Query("party"),
		}
		orders, err := models.GetAllOrders(c.Request.Context(), &filter)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders})
	}
}

func getOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		order, err := models.GetOrderById(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"order":           order,
			"adjusted_profit": models.AdjustedProfit(order),
			"has_adjustments": models.HasAdjustments(order),
		})
	}
}

func addOrderPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewPaymentRecord
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}
		payment, err := models.AddOrderPayment(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, payment)
	}
}

func removeOrderPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, ok := pathId(c, "id")
		if !ok {
			return
		}
		paymentId, ok := pathId(c, "paymentId")
		if !ok {
			return
		}
		side := models.PaymentSide(c.Query("side"))
		if !side.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "side must be Expense or Customer"})
			return
		}
		payment, err := models.RemoveOrderPayment(c.Request.Context(), orderId, paymentId, side)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

/* reconciliation */

func reconcileSupplierHandler(ledgerFlow *workflow.LedgerWorkflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		supplier := c.Param("name")
		result, err := ledgerFlow.ReconcileSupplier(c.Request.Context(), supplier)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func reconcilePartyHandler(ledgerFlow *workflow.LedgerWorkflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		party := c.Param("name")
		result, err := ledgerFlow.ReconcileParty(c.Request.Context(), party)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

/* counterparty summaries */

func supplierOutstandingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		supplier := c.Param("name")
		outstanding, err := models.GetSupplierOutstanding(c.Request.Context(), supplier)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"supplier_name": supplier, "outstanding": outstanding})
	}
}

func partyOutstandingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		party := c.Param("name")
		outstanding, err := models.GetPartyOutstanding(c.Request.Context(), party)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"party_name": party, "outstanding": outstanding})
	}
}

/* timeline */

func timelineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		days, err := models.GetTimeline(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"days": days})
	}
}

/* invoices */

func createInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewInvoice
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}
		invoice, err := models.CreateInvoice(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	}
}

func listInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		invoices, err := models.GetInvoices(c.Request.Context(), c.Query("party"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"invoices": invoices})
	}
}

func addInvoicePaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewInvoicePayment
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}
		payment, err := models.AddInvoicePayment(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, payment)
	}
}

/* investments */

type newInvestmentAccountRequest struct {
	Name  string `json:"name" binding:"required"`
	Notes string `json:"notes"`
}

func createInvestmentAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req newInvestmentAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}
		account, err := models.CreateInvestmentAccount(c.Request.Context(), req.Name, req.Notes)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, account)
	}
}

func listInvestmentAccountsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accounts, err := models.GetInvestmentAccounts(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"accounts": accounts})
	}
}

func recordInvestmentActivityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewInvestmentActivity
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}
		activity, err := models.RecordInvestmentActivity(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, activity)
	}
}

/* audit */

func listHistoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var referenceId *int
		if v := c.Query("reference_id"); v != "" {
			id, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "reference_id must be an integer"})
				return
			}
			referenceId = &id
		}
		var referenceType *string
		if v := c.Query("reference_type"); v != "" {
			referenceType = &v
		}
		var userId *int
		if v := c.Query("user_id"); v != "" {
			id, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "user_id must be an integer"})
				return
			}
			userId = &id
		}

		histories, err := models.GetHistories(c.Request.Context(), referenceId, referenceType, userId)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"histories": histories})
	}
}

/* ops */

type outboxReplayRequest struct {
	RecordId int `json:"record_id"`
}

// outboxReplayHandler requeues a DEAD or FAILED outbox row for dispatch.
func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.RecordId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "record_id is required"})
			return
		}

		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is nil"})
			return
		}
		now := time.Now().UTC()
		if err := db.WithContext(c.Request.Context()).
			Model(&models.LedgerEventRecord{}).
			Where("id = ?", req.RecordId).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusFailed,
				"next_attempt_at":    &now,
				"locked_at":          nil,
				"last_publish_error": nil,
			}).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"record_id":       req.RecordId,
			"publish_status":  models.OutboxPublishStatusFailed,
			"next_attempt_at": now.Format(time.RFC3339Nano),
		})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}
