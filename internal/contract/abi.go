package contract

// PokemonNFTABI is the subset of the PokemonNFT contract ABI the client uses.
const PokemonNFTABI = `[
	{
		"inputs": [],
		"name": "mintNFT",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getShinyHunters",
		"outputs": [
			{
				"components": [
					{"internalType": "address", "name": "winner", "type": "address"},
					{"internalType": "string", "name": "pokemon", "type": "string"}
				],
				"internalType": "struct PokemonNFT.ShinyHunter[]",
				"name": "",
				"type": "tuple[]"
			}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "internalType": "address", "name": "sender", "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "tokenId", "type": "uint256"}
		],
		"name": "NewPokemonNFTMinted",
		"type": "event"
	}
]`

const (
	methodMint        = "mintNFT"
	methodHunters     = "getShinyHunters"
	eventMinted       = "NewPokemonNFTMinted"
	eventFieldSender  = "sender"
	eventFieldTokenID = "tokenId"
)
