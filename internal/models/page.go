package models

type PageUser struct {
	UserID int `json:"userId"`
}

type Page struct {
	PageID            string     `json:"pageId"`
	Name              string     `json:"name"`
	ProfilePicture    string     `json:"profilePicture"`
	ProfilePictureURL string     `json:"profilePictureUrl"`
	Users             []PageUser `json:"users"`
}

// AssignedTo reports whether the user is one of the page's editors.
func (p Page) AssignedTo(userID int) bool {
	for _, u := range p.Users {
		if u.UserID == userID {
			return true
		}
	}
	return false
}

type PageAssignment struct {
	PageID  string `json:"pageId" validate:"required"`
	UserIDs []int  `json:"userIds" validate:"required"`
}
