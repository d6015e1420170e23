package drafts

import (
	"strconv"

	"github.com/goccy/go-json"
)

// ModuleAdapter selects a voting or proposal module and its form data
type ModuleAdapter struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// NewDao is the in-progress DAO creation form
type NewDao struct {
	Name                   string          `json:"name"`
	Description            string          `json:"description"`
	ImageURL               string          `json:"imageUrl,omitempty"`
	VotingModuleAdapter    ModuleAdapter   `json:"votingModuleAdapter"`
	ProposalModuleAdapters []ModuleAdapter `json:"proposalModuleAdapters"`
}

// Default adapter IDs of a fresh DAO form
const (
	DefaultVotingModuleAdapterID   = "cw4-voting"
	DefaultProposalModuleAdapterID = "cwd-proposal-single"
)

// DefaultNewDao returns an empty creation form
func DefaultNewDao() NewDao {
	return NewDao{
		VotingModuleAdapter: ModuleAdapter{
			ID:   DefaultVotingModuleAdapterID,
			Data: json.RawMessage("{}"),
		},
		ProposalModuleAdapters: []ModuleAdapter{{
			ID:   DefaultProposalModuleAdapterID,
			Data: json.RawMessage("{}"),
		}},
	}
}

// NewDaoKey is the storage key of the creation form for a DAO, or a
// subDAO of parentCoreAddress when it is set
func NewDaoKey(parentCoreAddress string) string {
	return "newDao:" + parentCoreAddress
}

// ProposalDraft is an unsubmitted proposal
type ProposalDraft struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Messages    []json.RawMessage `json:"messages"`
}

// ProposalDraftKey is the storage key of a proposal draft on a proposal module
func ProposalDraftKey(proposalModule string, draftID int) string {
	return "proposalDraft:" + proposalModule + ":" + strconv.Itoa(draftID)
}
