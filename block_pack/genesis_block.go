package block_pack

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/playergold/playergold-bootstrap-core/structures"
	"github.com/playergold/playergold-bootstrap-core/utils"
)

// ZERO_PREV_HASH is the previous-hash sentinel of every genesis block.
const ZERO_PREV_HASH = "0000000000000000000000000000000000000000000000000000000000000000"

const GENESIS_BLOCK_INDEX = 0

// NewGenesisBlock builds the zero-index block from negotiated parameters.
// Everything here is derived from params alone - no clock reads, no randomness -
// so every participant holding the same params produces a bit-identical block.
func NewGenesisBlock(params structures.GenesisParams) structures.GenesisBlock {

	transactions := make([]structures.GenesisTransaction, 0, len(params.Participants))

	for _, participant := range params.Participants {

		amount := params.Rewards[participant]

		transactions = append(transactions, structures.GenesisTransaction{
			Id:        genesisTransactionId(params.NetworkId, participant, amount),
			Type:      structures.GENESIS_TX_TYPE_REWARD,
			To:        participant,
			Amount:    amount,
			Timestamp: params.Timestamp,
		})

	}

	block := structures.GenesisBlock{
		Index:        GENESIS_BLOCK_INDEX,
		PrevHash:     ZERO_PREV_HASH,
		NetworkId:    params.NetworkId,
		Timestamp:    params.Timestamp,
		Difficulty:   params.Difficulty,
		Transactions: transactions,
	}

	block.Hash = ComputeGenesisHash(&block)

	return block
}

func ComputeGenesisHash(block *structures.GenesisBlock) string {

	jsonedTransactions, err := json.Marshal(block.Transactions)

	if err != nil {
		panic("ComputeGenesisHash: failed to marshal transactions: " + err.Error())
	}

	dataToHash := strings.Join([]string{
		strconv.Itoa(block.Index),
		block.PrevHash,
		block.NetworkId,
		strconv.FormatInt(block.Timestamp, 10),
		strconv.Itoa(block.Difficulty),
		string(jsonedTransactions),
	}, ":")

	return utils.Blake3(dataToHash)
}

// VerifyGenesisBlock re-derives the content hash and checks the structural
// invariants of a zero-index block. Peers run this on every received proposal
// before acknowledging its hash.
func VerifyGenesisBlock(block *structures.GenesisBlock) bool {

	if block == nil {
		return false
	}

	if block.Index != GENESIS_BLOCK_INDEX || block.PrevHash != ZERO_PREV_HASH {
		return false
	}

	if len(block.Transactions) == 0 {
		return false
	}

	for _, transaction := range block.Transactions {

		if transaction.Type != structures.GENESIS_TX_TYPE_REWARD || transaction.To == "" {
			return false
		}

	}

	return ComputeGenesisHash(block) == block.Hash
}

func genesisTransactionId(networkId, participant string, amount uint64) string {

	return utils.Blake3(networkId + ":" + participant + ":" + strconv.FormatUint(amount, 10))

}
