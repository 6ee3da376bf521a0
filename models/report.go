package models

// UserScore is a leaderboard row computed from first-attempt answers.
type UserScore struct {
	UserID         string  `json:"userId"`
	DisplayName    string  `json:"displayName"`
	Score          int     `json:"score"`
	TotalAnswered  int     `json:"totalAnswered"`
	CorrectAnswers int     `json:"correctAnswers"`
	Accuracy       float64 `json:"accuracy"`
}

// QuestionStat summarises first attempts on a single quiz question.
type QuestionStat struct {
	QuizID        string  `json:"quizId"`
	QuestionIndex int     `json:"questionIndex"`
	QuestionText  string  `json:"questionText"`
	Attempts      int     `json:"attempts"`
	Correct       int     `json:"correct"`
	Difficulty    float64 `json:"difficulty"`
}

// UserPronunciationScore aggregates every pronunciation attempt of a user.
type UserPronunciationScore struct {
	UserID       string  `json:"userId"`
	DisplayName  string  `json:"displayName"`
	Attempts     int     `json:"attempts"`
	AverageScore float64 `json:"averageScore"`
	BestScore    int     `json:"bestScore"`
	LatestScore  int     `json:"latestScore"`
	Trend        int     `json:"trend"`
}
