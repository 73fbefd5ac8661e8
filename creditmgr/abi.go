package creditmgr

// creditContractABI is the subset of the credit contract's ABI the
// clearinghouse agent calls (spec.md §4.1's nine operations, minus
// approve/allowance which live on the asset token below).
const creditContractABI = `[
	{"type":"function","name":"getMerchant","stateMutability":"view",
	 "inputs":[{"name":"addr","type":"address"}],
	 "outputs":[
		{"name":"stake","type":"uint256"},
		{"name":"limit","type":"uint256"},
		{"name":"exposure","type":"uint256"},
		{"name":"agentId","type":"string"},
		{"name":"endpoint","type":"string"},
		{"name":"active","type":"bool"}
	 ]},
	{"type":"function","name":"getMerchantSkills","stateMutability":"view",
	 "inputs":[{"name":"addr","type":"address"}],
	 "outputs":[{"name":"skills","type":"string[]"}]},
	{"type":"function","name":"subscribeFor","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"addr","type":"address"},
		{"name":"stake","type":"uint256"},
		{"name":"agentId","type":"string"},
		{"name":"endpoint","type":"string"},
		{"name":"skills","type":"string[]"}
	 ],"outputs":[]},
	{"type":"function","name":"setCreditLimit","stateMutability":"nonpayable",
	 "inputs":[{"name":"addr","type":"address"},{"name":"limit","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"recordPayment","stateMutability":"nonpayable",
	 "inputs":[{"name":"addr","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"clearExposure","stateMutability":"nonpayable",
	 "inputs":[{"name":"addr","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"slash","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"addr","type":"address"},
		{"name":"client","type":"address"},
		{"name":"amount","type":"uint256"}
	 ],"outputs":[]},
	{"type":"event","name":"Subscribed","anonymous":false,
	 "inputs":[
		{"name":"merchant","type":"address","indexed":true},
		{"name":"agentId","type":"string","indexed":false},
		{"name":"stake","type":"uint256","indexed":false}
	 ]},
	{"type":"event","name":"ExposureIncreased","anonymous":false,
	 "inputs":[
		{"name":"merchant","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}
	 ]},
	{"type":"event","name":"ExposureCleared","anonymous":false,
	 "inputs":[
		{"name":"merchant","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}
	 ]},
	{"type":"event","name":"Slashed","anonymous":false,
	 "inputs":[
		{"name":"merchant","type":"address","indexed":true},
		{"name":"client","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}
	 ]}
]`

// assetTokenABI is the minimal ERC-20 surface the clearinghouse agent needs
// to authorize the credit contract to pull its own stake-forwarding balance
// (spec.md §4.4.1 step 3).
const assetTokenABI = `[
	{"type":"function","name":"approve","stateMutability":"nonpayable",
	 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"allowance","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`
