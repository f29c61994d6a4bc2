// Package classify assigns a TxType to raw indexer records based on the
// upstream endpoint they came from and their 4-byte method selector.
package classify

import "github.com/tracex/risk-engine/pkg/models"

// Source identifies which indexer endpoint produced a raw record.
type Source string

const (
	SourceTxList  Source = "txlist"
	SourceTokenTx Source = "tokentx"
)

const erc20TransferMethod = "0xa9059cbb"

// Known bridge entrypoint selectors and the service behind them.
var bridgeMethods = map[string]string{
	"0x4d8160ba": "DeBridge",
	"0xae328590": "Relay",
	"0xc7c7f5b3": "USDT0",
}

// Known router selectors for swaps.
var swapMethods = map[string]string{
	"0x3593564c": "Uniswap Universal Router",
	"0x733214a3": "LI.FI",
	"0xaf7060fd": "LI.FI",
	"0x4666fc80": "LI.FI",
}

// Classify maps a raw record to its transaction type. Token-transfer
// records with the ERC20 transfer selector are ERC20 transfers; normal
// records with empty input are native transfers. Everything else is checked
// against the swap and bridge selector tables, in that order. Records that
// match nothing are Unknown and get discarded before scoring.
func Classify(source Source, input, methodID string) models.TxType {
	switch source {
	case SourceTokenTx:
		if methodID == erc20TransferMethod {
			return models.TxERC20Transfer
		}
	case SourceTxList:
		if input == "0x" {
			return models.TxNative
		}
	}

	if _, ok := swapMethods[methodID]; ok {
		return models.TxSwap
	}
	if _, ok := bridgeMethods[methodID]; ok {
		return models.TxBridge
	}
	return models.TxUnknown
}

// BridgeLabel returns the bridge service name for a selector, "" if the
// selector is not a known bridge entrypoint.
func BridgeLabel(methodID string) string {
	return bridgeMethods[methodID]
}

// BridgeDecoder resolves the destination of a bridge transaction. Concrete
// decoders are protocol-specific and live outside the scoring core.
type BridgeDecoder interface {
	Decode(chainID int64, txHash string) (dstChainID int64, recipient string, err error)
}
