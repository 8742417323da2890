package contracts

// DropERC721ABI is the subset of the thirdweb DropERC721 interface used by the claim client.
const DropERC721ABI = `[
  {"type":"function","name":"nextTokenIdToMint","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"totalMinted","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getActiveClaimConditionId","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getClaimConditionById","stateMutability":"view",
   "inputs":[{"name":"_conditionId","type":"uint256"}],
   "outputs":[{"name":"condition","type":"tuple","components":[
     {"name":"startTimestamp","type":"uint256"},
     {"name":"maxClaimableSupply","type":"uint256"},
     {"name":"supplyClaimed","type":"uint256"},
     {"name":"quantityLimitPerWallet","type":"uint256"},
     {"name":"merkleRoot","type":"bytes32"},
     {"name":"pricePerToken","type":"uint256"},
     {"name":"currency","type":"address"},
     {"name":"metadata","type":"string"}
   ]}]},
  {"type":"function","name":"claim","stateMutability":"payable",
   "inputs":[
     {"name":"_receiver","type":"address"},
     {"name":"_quantity","type":"uint256"},
     {"name":"_currency","type":"address"},
     {"name":"_pricePerToken","type":"uint256"},
     {"name":"_allowlistProof","type":"tuple","components":[
       {"name":"proof","type":"bytes32[]"},
       {"name":"quantityLimitPerWallet","type":"uint256"},
       {"name":"pricePerToken","type":"uint256"},
       {"name":"currency","type":"address"}
     ]},
     {"name":"_data","type":"bytes"}
   ],
   "outputs":[]},
  {"type":"event","name":"TokensClaimed","anonymous":false,
   "inputs":[
     {"name":"claimConditionIndex","type":"uint256","indexed":true},
     {"name":"claimer","type":"address","indexed":true},
     {"name":"receiver","type":"address","indexed":true},
     {"name":"startTokenId","type":"uint256","indexed":false},
     {"name":"quantityClaimed","type":"uint256","indexed":false}
   ]}
]`

// ERC20MetadataABI covers the calls needed to label a non-native claim currency.
const ERC20MetadataABI = `[
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

// NativeTokenAddress is the sentinel currency thirdweb uses for the chain's native coin.
const NativeTokenAddress = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"
