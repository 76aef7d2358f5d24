package relayer

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/store"
	"github.com/strangelove-ventures/cctp-vault-orchestrator/types"
)

type api struct {
	orchestrator *Orchestrator
	store        store.Store
}

// NewRouter builds the HTTP API. Initiation returns once the transfer is
// recorded; progress is observed by polling the transfer.
func NewRouter(o *Orchestrator, st store.Store, trustedProxies []string) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		return nil, err
	}

	a := &api{orchestrator: o, store: st}
	router.POST("/deposits", a.postDeposit)
	router.POST("/withdrawals", a.postWithdrawal)
	router.GET("/transfers/:id", a.getTransfer)
	router.POST("/transfers/:id/resume", a.resumeTransfer)
	router.GET("/deposits/tx/:hash", a.getDepositByTx)
	router.GET("/health", a.health)
	return router, nil
}

func (a *api) postDeposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	rec, err := a.orchestrator.InitiateDeposit(c.Request.Context(), req)
	if err != nil {
		writeError(c, rec, err)
		return
	}
	c.IndentedJSON(http.StatusAccepted, rec)
}

func (a *api) postWithdrawal(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	rec, err := a.orchestrator.InitiateWithdraw(c.Request.Context(), req)
	if err != nil {
		writeError(c, rec, err)
		return
	}
	c.IndentedJSON(http.StatusAccepted, rec)
}

func (a *api) getTransfer(c *gin.Context) {
	rec, err := a.orchestrator.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, nil, err)
		return
	}
	c.IndentedJSON(http.StatusOK, rec)
}

func (a *api) getDepositByTx(c *gin.Context) {
	rec, err := a.orchestrator.GetDepositBySourceTx(c.Request.Context(), c.Param("hash"))
	if err != nil {
		writeError(c, nil, err)
		return
	}
	c.IndentedJSON(http.StatusOK, rec)
}

// resumeTransfer hands the transfer to the worker pool without waiting on it.
func (a *api) resumeTransfer(c *gin.Context) {
	rec, err := a.orchestrator.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, nil, err)
		return
	}
	if rec.Status.Terminal() {
		c.IndentedJSON(http.StatusOK, rec)
		return
	}
	if !a.orchestrator.Dispatch(rec.ID) {
		c.IndentedJSON(http.StatusServiceUnavailable, gin.H{"message": "processing queue full"})
		return
	}
	c.IndentedJSON(http.StatusAccepted, rec)
}

func (a *api) health(c *gin.Context) {
	backend := a.store.Backend()
	status := "ok"
	if backend.Degraded {
		status = "degraded"
	}
	c.IndentedJSON(http.StatusOK, gin.H{"status": status, "store": backend})
}

// writeError maps error kinds to status codes. A record that reached a
// terminal state is returned alongside the message.
func writeError(c *gin.Context, rec *types.TransferRecord, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		code = http.StatusNotFound
	case types.IsRetryable(err):
		code = http.StatusServiceUnavailable
	}

	body := gin.H{"message": err.Error()}
	if rec != nil {
		body["transfer"] = rec
	}
	c.IndentedJSON(code, body)
}
