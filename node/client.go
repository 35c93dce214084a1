package node

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"golang.org/x/net/context"

	"github.com/ariadne-eth/ariadne/config"
	"github.com/ariadne-eth/ariadne/logging"
	"github.com/ariadne-eth/ariadne/tracing"
)

// Client supplies transaction facts and instruction traces from a blockchain node over JSON-RPC. It is the
// only component that talks to the network; everything downstream operates on the traces it returns. The
// node must expose the debug tracing namespace.
type Client struct {
	rpcClient   *rpc.Client
	ethClient   *ethclient.Client
	traceConfig config.TraceConfig
	logger      *logging.Logger
}

// tracerOptions describes the options document forwarded to the node's struct-log tracer.
type tracerOptions struct {
	EnableMemory     bool `json:"enableMemory"`
	DisableStack     bool `json:"disableStack"`
	DisableStorage   bool `json:"disableStorage"`
	EnableReturnData bool `json:"enableReturnData"`
}

// SimulatedCall describes a hypothetical call to execute through the node without a transaction.
type SimulatedCall struct {
	// From describes the caller address.
	From common.Address

	// To describes the contract to call.
	To common.Address

	// Data describes the calldata, typically produced by the argument codec.
	Data []byte

	// Value describes the ether value to transfer, or nil for none.
	Value *big.Int
}

// Dial connects to the node at the given endpoint. The trace configuration controls what the node captures
// per step on every subsequent trace request.
func Dial(endpoint string, traceConfig config.TraceConfig) (*Client, error) {
	rpcClient, err := rpc.Dial(endpoint)
	if err != nil {
		return nil, errors.WithMessagef(err, "could not connect to the node at %v", endpoint)
	}
	return &Client{
		rpcClient:   rpcClient,
		ethClient:   ethclient.NewClient(rpcClient),
		traceConfig: traceConfig,
		logger:      logging.GlobalLogger.NewSubLogger("module", "node"),
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.rpcClient.Close()
}

// TransactionInfo describes the facts of a mined transaction that seed a trace: the parties, the
// calldata, and the receipt-reported outcome.
type TransactionInfo struct {
	// Hash describes the transaction hash.
	Hash common.Hash

	// From describes the recovered sender address.
	From common.Address

	// To describes the called contract, or nil for a contract creation.
	To *common.Address

	// Input describes the transaction calldata (the init code for creations).
	Input []byte

	// Value describes the transferred ether value.
	Value *big.Int

	// GasUsed describes the receipt-reported gas consumption.
	GasUsed uint64

	// Failed indicates the receipt reported a failed execution.
	Failed bool

	// ContractAddress describes the created contract's address, when the transaction was a creation.
	ContractAddress *common.Address
}

// TransactionInfo fetches a mined transaction and its receipt and condenses them into the facts a trace
// needs. Pending transactions are rejected; they have no instruction trace to fetch.
func (c *Client) TransactionInfo(ctx context.Context, txHash common.Hash) (*TransactionInfo, error) {
	tx, pending, err := c.ethClient.TransactionByHash(ctx, txHash)
	if err != nil {
		return nil, errors.WithMessagef(err, "could not fetch transaction %v", txHash.Hex())
	}
	if pending {
		return nil, errors.Errorf("transaction %v is still pending and cannot be traced", txHash.Hex())
	}
	receipt, err := c.ethClient.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, errors.WithMessagef(err, "could not fetch the receipt of transaction %v", txHash.Hex())
	}
	sender, err := c.ethClient.TransactionSender(ctx, tx, receipt.BlockHash, receipt.TransactionIndex)
	if err != nil {
		return nil, errors.WithMessagef(err, "could not recover the sender of transaction %v", txHash.Hex())
	}

	info := &TransactionInfo{
		Hash:    txHash,
		From:    sender,
		To:      tx.To(),
		Input:   tx.Data(),
		Value:   tx.Value(),
		GasUsed: receipt.GasUsed,
		Failed:  receipt.Status == 0,
	}
	if receipt.ContractAddress != (common.Address{}) {
		created := receipt.ContractAddress
		info.ContractAddress = &created
	}
	return info, nil
}

// TraceTransaction fetches a mined transaction's facts and its instruction trace, and assembles them
// into a TransactionTrace ready for call-tree reconstruction.
func (c *Client) TraceTransaction(ctx context.Context, txHash common.Hash) (*tracing.TransactionTrace, error) {
	info, err := c.TransactionInfo(ctx, txHash)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Requesting the instruction trace of ", txHash.Hex())
	var result txTraceResult
	if err = c.rpcClient.CallContext(ctx, &result, "debug_traceTransaction", txHash, c.tracerOptions()); err != nil {
		return nil, errors.WithMessagef(err, "could not trace transaction %v", txHash.Hex())
	}

	trace, err := c.assembleTrace(&result)
	if err != nil {
		return nil, err
	}
	trace.TxHash = info.Hash
	trace.From = info.From
	trace.To = info.To
	trace.Input = info.Input
	trace.Value = info.Value
	trace.GasUsed = info.GasUsed
	trace.ContractAddress = info.ContractAddress
	// The receipt is authoritative for the overall outcome; the tracer document alone cannot
	// distinguish some failure shapes across node versions.
	trace.Failed = trace.Failed || info.Failed
	return trace, nil
}

// TraceCall executes a hypothetical call through the node's tracer against the given block (nil for the
// latest) and assembles the result into a TransactionTrace.
func (c *Client) TraceCall(ctx context.Context, call SimulatedCall, blockNumber *big.Int) (*tracing.TransactionTrace, error) {
	callArgs := map[string]any{
		"from": call.From,
		"to":   call.To,
		"data": hexutil.Bytes(call.Data),
	}
	if call.Value != nil && call.Value.Sign() > 0 {
		callArgs["value"] = (*hexutil.Big)(call.Value)
	}
	blockRef := "latest"
	if blockNumber != nil {
		blockRef = hexutil.EncodeBig(blockNumber)
	}

	c.logger.Debug("Simulating a call to ", call.To.String(), " at block ", blockRef)
	var result txTraceResult
	if err := c.rpcClient.CallContext(ctx, &result, "debug_traceCall", callArgs, blockRef, c.tracerOptions()); err != nil {
		return nil, errors.WithMessagef(err, "could not simulate the call to %v", call.To.String())
	}

	trace, err := c.assembleTrace(&result)
	if err != nil {
		return nil, err
	}
	to := call.To
	trace.From = call.From
	trace.To = &to
	trace.Input = call.Data
	trace.Value = call.Value
	trace.GasUsed = result.Gas
	return trace, nil
}

// Code fetches the deployed bytecode at the given address, used to match on-chain contracts against
// registered debug metadata.
func (c *Client) Code(ctx context.Context, address common.Address) ([]byte, error) {
	code, err := c.ethClient.CodeAt(ctx, address, nil)
	if err != nil {
		return nil, errors.WithMessagef(err, "could not fetch the code at %v", address.String())
	}
	return code, nil
}

// assembleTrace converts a tracer result document into the parts of a TransactionTrace that do not depend
// on how the trace was requested.
func (c *Client) assembleTrace(result *txTraceResult) (*tracing.TransactionTrace, error) {
	steps, truncated, err := parseSteps(result.StructLogs, c.traceConfig.MaxSteps)
	if err != nil {
		return nil, err
	}
	if truncated {
		c.logger.Warn("The trace exceeds the configured step cap of ", c.traceConfig.MaxSteps, " steps and was cut off")
	}
	output, err := decodeHexBlob(result.ReturnValue)
	if err != nil {
		return nil, errors.WithMessage(err, "could not parse the trace's return value")
	}
	return &tracing.TransactionTrace{
		Output:    output,
		Failed:    result.Failed,
		GasUsed:   result.Gas,
		Steps:     steps,
		Truncated: truncated,
	}, nil
}

// tracerOptions renders the configured capture options in the tracer's wire shape.
func (c *Client) tracerOptions() *tracerOptions {
	return &tracerOptions{
		EnableMemory:     c.traceConfig.EnableMemory,
		DisableStorage:   !c.traceConfig.EnableStorage,
		EnableReturnData: c.traceConfig.EnableReturnData,
	}
}
