package models

// SimilarMovie is a content-based similarity result.
type SimilarMovie struct {
	Movie           CachedMovie `json:"movie"`
	SimilarityScore float64     `json:"similarity_score"`
	GenreOverlap    int         `json:"genre_overlap,omitempty"`
}

// CollaborativeRecommendation carries a rating predicted from similar users.
type CollaborativeRecommendation struct {
	Movie           CachedMovie `json:"movie"`
	PredictedRating float64     `json:"predicted_rating"`
}

// HybridRecommendation is the fused content + collaborative result. Scores
// are normalized per request; HybridScore is always in [0,1].
type HybridRecommendation struct {
	Movie        CachedMovie `json:"movie"`
	ContentScore float64     `json:"content_score"`
	CollabScore  float64     `json:"collab_score"`
	HybridScore  float64     `json:"hybrid_score"`
}

// MoodRecommendation is a rule-scored result for a mood query.
type MoodRecommendation struct {
	Movie        CachedMovie `json:"movie"`
	MoodScore    float64     `json:"mood_score"`
	GenreOverlap int         `json:"genre_overlap"`
}
