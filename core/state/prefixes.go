package state

var (
	accountPrefix            = []byte("account/")
	remittanceEntryPrefix    = []byte("remittance/entry/")
	remittanceConfigKey      = []byte("remittance/config")
	remittanceParamsKey      = []byte("remittance/params")
	remittanceOutstandingKey = []byte("remittance/outstanding")
)
