package chainmaker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"chainmaker.org/chainmaker/pb-go/v2/common"
	sdk "chainmaker.org/chainmaker/sdk-go/v2"

	"reloop/config"
	"reloop/ledger/types"
)

// Client is the wrapper around the ChainMaker SDK client
type Client struct {
	sdkClient sdk.ChainClient
	cfg       *config.LedgerConfig
	logger    *log.Logger
}

// NewChainMakerClient initializes the ChainMaker SDK client with the combined configuration
func NewChainMakerClient(cfg *config.LedgerConfig, logger *log.Logger) (*Client, error) {
	logger.Println("Initializing ChainMaker SDK client using builder pattern...")

	chainmakerCfg, ok := cfg.ChainSpecific.(*ChainMakerConfig)
	if !ok {
		return nil, fmt.Errorf("invalid ChainMaker configuration type")
	}

	var clientOptions []sdk.ChainClientOption
	clientOptions = append(clientOptions, sdk.WithChainClientOrgId(chainmakerCfg.OrgID))
	clientOptions = append(clientOptions, sdk.WithChainClientChainId(chainmakerCfg.ChainID))
	clientOptions = append(clientOptions, sdk.WithUserKeyFilePath(chainmakerCfg.UserKeyPath))
	clientOptions = append(clientOptions, sdk.WithUserCrtFilePath(chainmakerCfg.UserCertPath))
	clientOptions = append(clientOptions, sdk.WithUserSignKeyFilePath(chainmakerCfg.UserSignKeyPath))
	clientOptions = append(clientOptions, sdk.WithUserSignCrtFilePath(chainmakerCfg.UserSignCertPath))

	if len(chainmakerCfg.Nodes) == 0 {
		return nil, fmt.Errorf("no node configurations provided in config")
	}
	for _, nodeCfg := range chainmakerCfg.Nodes {
		if nodeCfg.UseTLS && len(nodeCfg.CaPaths) == 0 {
			return nil, fmt.Errorf("node %s has TLS enabled but no CaPaths provided", nodeCfg.Address)
		}
		sdkNodeConfig := sdk.NewNodeConfig(
			sdk.WithNodeAddr(nodeCfg.Address),
			sdk.WithNodeConnCnt(nodeCfg.ConnCount),
			sdk.WithNodeUseTLS(nodeCfg.UseTLS),
			sdk.WithNodeCAPaths(nodeCfg.CaPaths),
			sdk.WithNodeTLSHostName(nodeCfg.TLSHostName),
		)
		clientOptions = append(clientOptions, sdk.AddChainClientNodeConfig(sdkNodeConfig))
	}

	// Apply common configuration (retry, timeout, etc.)
	if cfg.RetryLimit > 0 {
		clientOptions = append(clientOptions, sdk.WithRetryLimit(cfg.RetryLimit))
	}
	if cfg.RetryInterval > 0 {
		clientOptions = append(clientOptions, sdk.WithRetryInterval(cfg.RetryInterval))
	}

	client, err := sdk.NewChainClient(clientOptions...)
	if err != nil {
		logger.Printf("Failed to build ChainMaker SDK client: %v\n", err)
		return nil, err
	}

	err = client.EnableCertHash()
	if err != nil {
		logger.Printf("Warning: Failed to enable cert hash: %v\n", err)
	}

	logger.Println("ChainMaker SDK client initialized successfully.")

	return &Client{
		sdkClient: *client,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// NewChainMakerClientFromFile initializes the ChainMaker SDK client directly from a configuration file path
func NewChainMakerClientFromFile(configPath string, logger *log.Logger) (*Client, error) {
	chainmakerCfg, err := LoadChainMakerConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load ChainMaker config from file '%s': %w", configPath, err)
	}

	ledgerCfg := &config.LedgerConfig{
		LedgerType:    "chainmaker",
		ChainSpecific: chainmakerCfg,
		// Use defaults for common settings
		RetryLimit:     20,
		RetryInterval:  500,
		TimeoutSeconds: 15,
	}

	return NewChainMakerClient(ledgerCfg, logger)
}

// Config returns the configuration associated with the client.
func (c *Client) Config() any {
	if c.cfg == nil || c.cfg.ChainSpecific == nil {
		log.Println("Warning: Accessing client config before initialization.")
		return &ChainMakerConfig{} // Return empty config to avoid nil pointer panic
	}
	return c.cfg.ChainSpecific
}

// Close stops the SDK client
func (c *Client) Close() error {
	c.logger.Println("Closing ChainMaker SDK client...")
	if err := c.sdkClient.Stop(); err != nil {
		c.logger.Printf("Error stopping ChainMaker SDK client: %v", err)
		return fmt.Errorf("failed to stop ChainMaker SDK client: %w", err)
	}
	return nil
}

func (c *Client) chainCfg() *ChainMakerConfig {
	return c.cfg.ChainSpecific.(*ChainMakerConfig)
}

// AnchorBatch anchors a batch of asset roots in a single transaction
func (c *Client) AnchorBatch(ctx context.Context, entries []types.AnchorEntry) (*types.BatchProof, []types.AnchorStatusInfo, error) {
	if len(entries) == 0 {
		return nil, nil, fmt.Errorf("anchor entry batch cannot be empty")
	}
	if c.chainCfg().AnchorBatchMethodName == "" || c.chainCfg().ParamKeyAnchorsJson == "" {
		return nil, nil, fmt.Errorf("batch configuration fields not set in config")
	}

	anchorsJsonBytes, err := json.Marshal(entries)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal anchor entries to JSON: %w", err)
	}

	kvs := []*common.KeyValuePair{
		{
			Key:   c.chainCfg().ParamKeyAnchorsJson,
			Value: anchorsJsonBytes,
		},
	}

	_, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	resp, err := c.sdkClient.InvokeContract(
		c.chainCfg().ContractName,
		c.chainCfg().AnchorBatchMethodName,
		"",
		kvs,
		-1,
		true,
	)

	if err != nil {
		return nil, nil, fmt.Errorf("SDK batch invoke failed: %w", err)
	}

	if resp.Code != common.TxStatusCode_SUCCESS {
		return nil, nil, fmt.Errorf("contract batch execution failed: %s (code: %d)", resp.Message, resp.Code)
	}
	if resp.ContractResult == nil {
		return nil, nil, fmt.Errorf("contract batch execution returned nil result (tx: %s)", resp.TxId)
	}

	var results []types.AnchorStatusInfo
	resultJsonBytes := resp.ContractResult.Result
	if len(resultJsonBytes) == 0 {
		return nil, nil, fmt.Errorf("contract batch execution returned empty result bytes (tx: %s)", resp.TxId)
	}

	err = json.Unmarshal(resultJsonBytes, &results)
	if err != nil {
		c.logger.Printf("Failed to unmarshal batch results JSON (TxID: %s). Raw result: %s", resp.TxId, string(resultJsonBytes))
		return nil, nil, fmt.Errorf("failed to unmarshal contract batch results: %w", err)
	}

	batchProof := &types.BatchProof{
		TransactionID: resp.TxId,
		BlockHeight:   resp.TxBlockHeight,
	}

	return batchProof, results, nil
}

// AnchorRoot anchors a single asset's Merkle root
func (c *Client) AnchorRoot(ctx context.Context, assetID, merkleRoot, timestamp string, entryCount int) (*types.Proof, error) {
	kvs := []*common.KeyValuePair{
		{Key: c.chainCfg().ParamKeyAssetID, Value: []byte(assetID)},
		{Key: c.chainCfg().ParamKeyMerkleRoot, Value: []byte(merkleRoot)},
		{Key: c.chainCfg().ParamKeyEntryCount, Value: []byte(strconv.Itoa(entryCount))},
		{Key: c.chainCfg().ParamKeyTimestamp, Value: []byte(timestamp)},
	}
	_, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.TimeoutSeconds)*time.Second)
	defer cancel()
	resp, err := c.sdkClient.InvokeContract(
		c.chainCfg().ContractName, c.chainCfg().AnchorRootMethodName, "", kvs, -1, true)
	if err != nil {
		return nil, fmt.Errorf("SDK invoke failed: %w", err)
	}
	if resp.Code != common.TxStatusCode_SUCCESS {
		return nil, fmt.Errorf("contract execution failed: %s (code: %d)", resp.Message, resp.Code)
	}
	returnedRoot := string(resp.ContractResult.Result)
	if returnedRoot != merkleRoot {
		return nil, fmt.Errorf("contract returned root '%s' does not match sent root '%s'", returnedRoot, merkleRoot)
	}
	proof := &types.Proof{TransactionID: resp.TxId, BlockHeight: resp.TxBlockHeight, MerkleRoot: returnedRoot}
	return proof, nil
}

// FindAnchorByAsset queries the contract for an asset's latest anchored root
func (c *Client) FindAnchorByAsset(ctx context.Context, assetID string) (string, error) {
	_, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.TimeoutSeconds)*time.Second)
	defer cancel()
	kvs := []*common.KeyValuePair{{Key: c.chainCfg().ParamKeyAssetID, Value: []byte(assetID)}}
	resp, err := c.sdkClient.QueryContract(c.chainCfg().ContractName, c.chainCfg().FindAnchorMethodName, kvs, -1)
	if err != nil {
		return "", fmt.Errorf("SDK query failed: %w", err)
	}
	if resp.Code != common.TxStatusCode_SUCCESS {
		return "", fmt.Errorf("contract query failed: %s (code: %d)", resp.Message, resp.Code)
	}
	return string(resp.ContractResult.Result), nil
}

// GetAnchorByTxID performs the "on-chain public audit" by querying transaction details
func (c *Client) GetAnchorByTxID(ctx context.Context, txID string) (*types.AuditRecord, error) {
	if txID == "" {
		return nil, fmt.Errorf("transaction id cannot be empty")
	}
	txInfo, err := c.sdkClient.GetTxByTxId(txID)
	if err != nil {
		return nil, fmt.Errorf("SDK get transaction failed: %w", err)
	}
	if txInfo == nil || txInfo.Transaction == nil || txInfo.Transaction.Result == nil || txInfo.Transaction.Result.ContractResult == nil {
		return nil, fmt.Errorf("transaction data is incomplete or nil for tx: %s", txID)
	}
	if txInfo.Transaction.Result.Code != common.TxStatusCode_SUCCESS {
		return nil, fmt.Errorf("transaction execution failed: %s", txInfo.Transaction.Result.Message)
	}
	events := txInfo.Transaction.Result.ContractResult.ContractEvent
	for _, event := range events {
		if event.Topic == c.chainCfg().AnchorEventTopic {
			eventData := event.EventData
			if len(eventData) != 3 {
				return nil, fmt.Errorf("malformed event data: expected 3 fields, got %d", len(eventData))
			}
			record := &types.AuditRecord{AssetID: eventData[0], MerkleRoot: eventData[1], Timestamp: eventData[2]}
			return record, nil
		}
	}
	return nil, fmt.Errorf("event '%s' not found in transaction %s", c.chainCfg().AnchorEventTopic, txID)
}
