package dto

// ProfilePicture travels as base64 in JSON.
type ProfileResponse struct {
	Username       string  `json:"username"`
	Bio            string  `json:"bio"`
	ProfilePicture []byte  `json:"profile_picture,omitempty"`
	Balance        float64 `json:"balance"`
}

type UpdateProfileRequest struct {
	Username       *string `json:"username"`
	Bio            *string `json:"bio"`
	ProfilePicture []byte  `json:"profile_picture"`
	RemovePicture  bool    `json:"remove_picture"`
}

type AdjustBalanceRequest struct {
	Delta float64 `json:"delta"`
}

type BalanceResponse struct {
	Balance float64 `json:"balance"`
}

type LocationResponse struct {
	Location   Coordinate `json:"location"`
	Retargeted int        `json:"retargeted"`
}
