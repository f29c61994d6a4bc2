package engine

import (
	"strconv"
	"strings"

	"github.com/tracex/risk-engine/internal/chains"
	"github.com/tracex/risk-engine/pkg/models"
)

// Placeholder contract for native transfers.
const nativeAssetContract = "0xETH"

// TransactionsFromGraph projects a collected graph into the evaluator's
// transaction view for one target address. Counterparty flags come from
// the graph's node attributes.
func TransactionsFromGraph(g *models.ScoringGraph, target string) []*TxData {
	target = models.CanonicalAddress(target)

	flagsByAddr := make(map[string]models.NodeFlags, len(g.Nodes))
	for _, n := range g.Nodes {
		flagsByAddr[n.Address] = models.NodeFlags{
			Label:        n.Label,
			IsBridge:     n.IsBridge,
			IsKnownScam:  n.IsKnownScam,
			IsMixer:      n.IsMixer,
			IsSanctioned: n.IsSanctioned,
		}
	}

	txs := make([]*TxData, 0, len(g.Edges))
	for _, e := range g.Edges {
		from := flagsByAddr[e.From]
		to := flagsByAddr[e.To]

		counterparty := e.From
		if e.From == target {
			counterparty = e.To
		}

		amount, _ := strconv.ParseFloat(e.Amount, 64)
		asset := e.TokenAddr
		if asset == "" {
			asset = nativeAssetContract
		}

		tx := &TxData{
			TxHash:        e.TxHash,
			From:          e.From,
			To:            e.To,
			TargetAddress: target,
			Timestamp:     e.Timestamp,
			BlockHeight:   e.BlockHeight,
			UsdValue:      e.UsdValue,
			Amount:        amount,
			Chain:         chains.Name(e.ChainID),
			Label:         edgeLabel(e.TxType, flagsByAddr[counterparty].Label),
			AssetContract: asset,
			IsSanctioned:  from.IsSanctioned || to.IsSanctioned,
			IsMixer:       from.IsMixer || to.IsMixer,
			IsBridge:      from.IsBridge || to.IsBridge,
			IsKnownScam:   from.IsKnownScam || to.IsKnownScam,
		}
		tx.SetEndpointFlags(from, to)
		txs = append(txs, tx)
	}
	return txs
}

// edgeLabel derives the evaluator-facing label: a meaningful counterparty
// label wins, then the transfer shape.
func edgeLabel(txType models.TxType, counterpartyLabel string) string {
	if counterpartyLabel != "" && counterpartyLabel != "unknown" {
		return counterpartyLabel
	}
	switch txType {
	case models.TxBridge:
		return "bridge"
	case models.TxSwap:
		return "dex"
	default:
		return "unknown"
	}
}

// FromTransactionInput maps a caller-supplied single transfer into the
// evaluator's view. The counterparty is the sender; the target receives.
func FromTransactionInput(in *models.TransactionInput) *TxData {
	asset := in.AssetContract
	if asset == "" {
		asset = nativeAssetContract
	}
	tx := &TxData{
		TxHash:        in.TxHash,
		From:          strings.ToLower(in.CounterpartyAddress),
		To:            strings.ToLower(in.TargetAddress),
		TargetAddress: strings.ToLower(in.TargetAddress),
		Timestamp:     models.ParseTimestamp(in.Timestamp),
		RawTimestamp:  in.Timestamp,
		BlockHeight:   in.BlockHeight,
		UsdValue:      in.AmountUsd,
		Chain:         strings.ToLower(in.Chain),
		Label:         strings.ToLower(in.Label),
		AssetContract: asset,
		IsSanctioned:  in.IsSanctioned,
		IsMixer:       in.IsMixer,
		IsBridge:      in.IsBridge,
		IsKnownScam:   in.IsKnownScam,
	}
	// Input flags describe the counterparty, which sends to the target.
	tx.SetEndpointFlags(models.NodeFlags{
		IsSanctioned: in.IsSanctioned,
		IsMixer:      in.IsMixer,
		IsBridge:     in.IsBridge,
		IsKnownScam:  in.IsKnownScam,
	}, models.NodeFlags{})
	return tx
}
