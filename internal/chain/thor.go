package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"vedelegate-core/pkg/logger"
	"vedelegate-core/pkg/safe_random"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

// ThorClient 通过 Thor 节点的 REST API 访问链。
// 实现 Reader; 配合 HashSigner 时同时实现 Sender。
type ThorClient struct {
	nodeURL  string
	chainTag uint8
	http     *http.Client
	signer   HashSigner // 可为 nil，此时只支持只读操作

	pollInterval time.Duration
}

var _ Client = (*ThorClient)(nil)

func NewThorClient(nodeURL string, chainTag uint8, signer HashSigner) *ThorClient {
	return &ThorClient{
		nodeURL:  nodeURL,
		chainTag: chainTag,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		signer:       signer,
		pollInterval: 3 * time.Second,
	}
}

type accountResponse struct {
	Balance string `json:"balance"`
	Energy  string `json:"energy"`
	HasCode bool   `json:"hasCode"`
}

type callResponse struct {
	Data     string `json:"data"`
	Reverted bool   `json:"reverted"`
	VMError  string `json:"vmError"`
	GasUsed  uint64 `json:"gasUsed"`
}

type bestBlockResponse struct {
	ID        string `json:"id"`
	Number    uint64 `json:"number"`
	Timestamp uint64 `json:"timestamp"`
}

type receiptResponse struct {
	Reverted bool `json:"reverted"`
	Meta     struct {
		BlockID        string `json:"blockID"`
		BlockNumber    uint64 `json:"blockNumber"`
		BlockTimestamp uint64 `json:"blockTimestamp"`
	} `json:"meta"`
}

// Call 执行只读合约调用 (POST /accounts/{addr})
func (c *ThorClient) Call(ctx context.Context, to common.Address, data []byte) (*CallResult, error) {
	payload := map[string]string{
		"value": "0x0",
		"data":  hexutil.Encode(data),
	}

	var resp callResponse
	if err := c.post(ctx, "/accounts/"+to.Hex(), payload, &resp); err != nil {
		return nil, err
	}

	decoded, err := hexutil.Decode(resp.Data)
	if err != nil && resp.Data != "" && resp.Data != "0x" {
		return nil, fmt.Errorf("decode call result: %w", err)
	}

	return &CallResult{
		Data:     decoded,
		Reverted: resp.Reverted,
		VMError:  resp.VMError,
	}, nil
}

// HasCode 查询地址是否已部署代码 (GET /accounts/{addr})
func (c *ThorClient) HasCode(ctx context.Context, addr common.Address) (bool, error) {
	var resp accountResponse
	if err := c.get(ctx, "/accounts/"+addr.Hex(), &resp); err != nil {
		return false, err
	}
	return resp.HasCode, nil
}

// SendClauses 组装、签名并广播多子句交易，轮询等待收据。
// 一旦广播成功就不可撤销；调用方取消等待不代表交易失败。
func (c *ThorClient) SendClauses(ctx context.Context, clauses []Clause) (*TxMeta, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("no signer configured")
	}
	if len(clauses) == 0 {
		return nil, fmt.Errorf("no clauses to send")
	}

	// 1. 取最新区块作为 blockRef
	var best bestBlockResponse
	if err := c.get(ctx, "/blocks/best", &best); err != nil {
		return nil, fmt.Errorf("fetch best block: %w", err)
	}
	blockID, err := hexutil.Decode(best.ID)
	if err != nil || len(blockID) < 8 {
		return nil, fmt.Errorf("invalid best block id %q", best.ID)
	}
	var blockRef [8]byte
	copy(blockRef[:], blockID[:8])

	// 2. 组装并签名
	nonce, err := safe_random.GenerateRandomInt(new(big.Int).SetUint64(1 << 62))
	if err != nil {
		return nil, err
	}
	body := buildTxBody(c.chainTag, blockRef, clauses, intrinsicGas(clauses), nonce.Uint64())
	raw, err := body.sign(c.signer)
	if err != nil {
		return nil, err
	}

	// 3. 广播
	var sendResp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/transactions", map[string]string{"raw": raw}, &sendResp); err != nil {
		return nil, fmt.Errorf("broadcast transaction: %w", err)
	}

	logger.Info("交易已广播", zap.String("txid", sendResp.ID), zap.Int("clauses", len(clauses)))

	// 4. 轮询收据直到确认或 ctx 取消
	meta, err := c.waitReceipt(ctx, sendResp.ID)
	if err != nil {
		return nil, err
	}
	return meta, nil
}

func (c *ThorClient) waitReceipt(ctx context.Context, txID string) (*TxMeta, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			var receipt *receiptResponse
			if err := c.get(ctx, "/transactions/"+txID+"/receipt", &receipt); err != nil {
				// 节点暂时不可达时继续轮询，交易已在链上广播
				logger.Debug("查询收据失败，继续轮询", zap.String("txid", txID), zap.Error(err))
				continue
			}
			if receipt == nil {
				continue // 尚未打包
			}
			if receipt.Reverted {
				return nil, fmt.Errorf("transaction reverted: %s", txID)
			}
			return &TxMeta{
				TxID:           txID,
				BlockID:        receipt.Meta.BlockID,
				BlockNumber:    receipt.Meta.BlockNumber,
				BlockTimestamp: receipt.Meta.BlockTimestamp,
			}, nil
		}
	}
}

func (c *ThorClient) get(ctx context.Context, path string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.nodeURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, target)
}

func (c *ThorClient) post(ctx context.Context, path string, payload interface{}, target interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.nodeURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, target)
}

func (c *ThorClient) do(req *http.Request, target interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node returned %d: %s", resp.StatusCode, string(data))
	}
	// "null" 表示资源不存在 (例如收据还没生成)
	if string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, target)
}
