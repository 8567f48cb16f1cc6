package domain

const (
	EventContractCreated        = "contract.created"
	EventContractStatusChanged  = "contract.status_changed"
	EventMilestoneCreated       = "milestone.created"
	EventMilestoneStatusChanged = "milestone.status_changed"
	EventMilestoneDeleted       = "milestone.deleted"
	EventEscrowAccountOpened    = "escrow.account_opened"
	EventEscrowDeposited        = "escrow.deposited"
	EventEscrowReleased         = "escrow.released"
	EventEscrowRefunded         = "escrow.refunded"
	EventWalletPendingCleared   = "wallet.pending_cleared"
	EventWalletPayoutDeducted   = "wallet.payout_deducted"
)
