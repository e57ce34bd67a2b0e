package block_pack

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/playergold/playergold-bootstrap-core/structures"
)

func formationParams() structures.GenesisParams {
	return structures.GenesisParams{
		Timestamp:    1700000000000,
		Difficulty:   1,
		Participants: []string{"PGaa000000000000000000000000000000000000", "PGbb000000000000000000000000000000000000", "PGcc000000000000000000000000000000000000"},
		Rewards: map[string]uint64{
			"PGaa000000000000000000000000000000000000": 1000,
			"PGbb000000000000000000000000000000000000": 1000,
			"PGcc000000000000000000000000000000000000": 1000,
		},
		NetworkId: "pg-testnet-fixed",
		ConsensusRules: structures.ConsensusRules{
			Algorithm:        "proof-of-ai-work",
			BlockTimeSeconds: 10,
			MinValidators:    3,
			MaxValidators:    100,
		},
	}
}

func TestNewGenesisBlockShape(t *testing.T) {

	require := require.New(t)

	block := NewGenesisBlock(formationParams())

	require.Equal(GENESIS_BLOCK_INDEX, block.Index)

	require.Equal(ZERO_PREV_HASH, block.PrevHash)

	require.Len(block.PrevHash, 64)

	require.Equal("pg-testnet-fixed", block.NetworkId)

	require.Len(block.Transactions, 3)

	for i, transaction := range block.Transactions {

		require.Equal(structures.GENESIS_TX_TYPE_REWARD, transaction.Type, "tx %d", i)

		require.Equal(uint64(1000), transaction.Amount, "tx %d", i)

		require.NotEmpty(transaction.Id, "tx %d", i)

	}

	require.NotEmpty(block.Hash)

}

// Every participant holding the same params must derive a bit-identical block.
// The whole distribution protocol rests on this.
func TestNewGenesisBlockDeterminism(t *testing.T) {

	require := require.New(t)

	first := NewGenesisBlock(formationParams())

	second := NewGenesisBlock(formationParams())

	require.Equal(first, second)

	require.Equal(first.Hash, second.Hash)

}

func TestGenesisHashCoversContent(t *testing.T) {

	baseline := NewGenesisBlock(formationParams())

	tests := []struct {
		name   string
		mutate func(params *structures.GenesisParams)
	}{
		{"different network id", func(params *structures.GenesisParams) { params.NetworkId = "pg-testnet-other" }},
		{"different timestamp", func(params *structures.GenesisParams) { params.Timestamp += 1 }},
		{"different difficulty", func(params *structures.GenesisParams) { params.Difficulty = 2 }},
		{"different reward", func(params *structures.GenesisParams) { params.Rewards["PGaa000000000000000000000000000000000000"] = 5 }},
		{"fewer participants", func(params *structures.GenesisParams) { params.Participants = params.Participants[:2] }},
	}

	for _, tt := range tests {

		t.Run(tt.name, func(t *testing.T) {

			params := formationParams()

			tt.mutate(&params)

			require.NotEqual(t, baseline.Hash, NewGenesisBlock(params).Hash)

		})

	}

}

func TestVerifyGenesisBlock(t *testing.T) {

	require := require.New(t)

	block := NewGenesisBlock(formationParams())

	require.True(VerifyGenesisBlock(&block))

	require.False(VerifyGenesisBlock(nil))

	tampered := block.CopyGenesisBlock()
	tampered.Transactions[0].Amount = 999999
	require.False(VerifyGenesisBlock(&tampered))

	wrongIndex := block.CopyGenesisBlock()
	wrongIndex.Index = 1
	require.False(VerifyGenesisBlock(&wrongIndex))

	wrongPrev := block.CopyGenesisBlock()
	wrongPrev.PrevHash = "1111111111111111111111111111111111111111111111111111111111111111"
	require.False(VerifyGenesisBlock(&wrongPrev))

	noTransactions := block.CopyGenesisBlock()
	noTransactions.Transactions = nil
	require.False(VerifyGenesisBlock(&noTransactions))

	wrongType := block.CopyGenesisBlock()
	wrongType.Transactions[0].Type = "transfer"
	require.False(VerifyGenesisBlock(&wrongType))

}
