package pagerpc

import "github.com/Keksclan/linkSquirrel/linkpage"

// GetProfileRequest is the input of GetProfile.
type GetProfileRequest struct {
	Username string `json:"username"`
}

// GetAIPageRequest is the input of GetAIPage.
type GetAIPageRequest struct {
	Slug string `json:"slug"`
}

// ProfileResponse carries one profile.
type ProfileResponse struct {
	Profile *linkpage.Profile `json:"profile"`
}

// AIPageResponse carries one AI page.
type AIPageResponse struct {
	Page *linkpage.AIPage `json:"page"`
}

// SaveProfileRequest is the input of SaveProfile.
type SaveProfileRequest struct {
	Profile *linkpage.Profile `json:"profile"`
}

// SaveAIPageRequest is the input of SaveAIPage.
type SaveAIPageRequest struct {
	Page *linkpage.AIPage `json:"page"`
}

// DeleteAIPageRequest is the input of DeleteAIPage.
type DeleteAIPageRequest struct {
	Slug string `json:"slug"`
}

// InvalidateTagRequest is the input of InvalidateTag.
type InvalidateTagRequest struct {
	Tag string `json:"tag"`
}

// Empty is the output of calls that return nothing.
type Empty struct{}

// pagesMsg is a marker interface satisfied by every message above.
type pagesMsg interface {
	isPagesMsg()
}

func (*GetProfileRequest) isPagesMsg()    {}
func (*GetAIPageRequest) isPagesMsg()     {}
func (*ProfileResponse) isPagesMsg()      {}
func (*AIPageResponse) isPagesMsg()       {}
func (*SaveProfileRequest) isPagesMsg()   {}
func (*SaveAIPageRequest) isPagesMsg()    {}
func (*DeleteAIPageRequest) isPagesMsg()  {}
func (*InvalidateTagRequest) isPagesMsg() {}
func (*Empty) isPagesMsg()                {}
