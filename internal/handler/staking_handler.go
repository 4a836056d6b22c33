package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"vedelegate-core/internal/handler/request"
	"vedelegate-core/internal/handler/response"
	"vedelegate-core/internal/service"
	"vedelegate-core/pkg/errno"
	"vedelegate-core/pkg/validator"
)

// StakingHandler 质押模块的 HTTP 入口。
// 服务端场景下没有用户钱包回调，授权子句走 owner 直驱路径。
type StakingHandler struct {
	svc *service.StakingService
}

func NewStakingHandler(svc *service.StakingService) *StakingHandler {
	return &StakingHandler{svc: svc}
}

// GetBalance 查询地址余额
// GET /api/v1/staking/balance/:address
func (h *StakingHandler) GetBalance(c *gin.Context) {
	address := c.Param("address")

	view, err := h.svc.GetBalance(c.Request.Context(), address)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// GetRewards 查询地址可领取的奖励
// GET /api/v1/staking/rewards/:address
func (h *StakingHandler) GetRewards(c *gin.Context) {
	address := c.Param("address")

	view, err := h.svc.GetRewards(c.Request.Context(), address)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// GetIdentity 查询地址的质押身份
// GET /api/v1/staking/identity/:address
func (h *StakingHandler) GetIdentity(c *gin.Context) {
	address := c.Param("address")

	id, err := h.svc.GetIdentity(c.Request.Context(), address)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, id)
}

// Stake 发起质押
// POST /api/v1/staking/stake
func (h *StakingHandler) Stake(c *gin.Context) {
	var req request.StakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}

	result := h.svc.Stake(c.Request.Context(), req.Owner, req.Amount, nil)
	if result.Err != nil {
		response.Error(c, result.Err)
		return
	}
	response.Success(c, result)
}

// Unstake 发起取回
// POST /api/v1/staking/unstake
func (h *StakingHandler) Unstake(c *gin.Context) {
	var req request.UnstakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}

	result := h.svc.Unstake(c.Request.Context(), req.Owner, req.Amount, req.Token, req.Recipient, nil)
	if result.Err != nil {
		response.Error(c, result.Err)
		return
	}
	response.Success(c, result)
}

// History 查询操作流水
// GET /api/v1/staking/history/:address?limit=20
func (h *StakingHandler) History(c *gin.Context) {
	address := c.Param("address")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	ops, err := h.svc.History(c.Request.Context(), address, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ops)
}

// CacheStats 查询缓存观测数据
// GET /api/v1/staking/cache/stats
func (h *StakingHandler) CacheStats(c *gin.Context) {
	response.Success(c, h.svc.CacheStats())
}
