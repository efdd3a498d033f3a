package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SubjectAnswersKey returns the key holding a subject's in-progress answers.
func (r *CacheKeyStruct) SubjectAnswersKey(subjectID, examID string) string {
	return fmt.Sprintf("subject:%s:exam:%s:answers", subjectID, examID)
}

// SubjectQuestionOrderKey returns the key holding the shuffled question order
// the subject was shown.
func (r *CacheKeyStruct) SubjectQuestionOrderKey(subjectID, examID string) string {
	return fmt.Sprintf("subject:%s:exam:%s:question_order", subjectID, examID)
}

// StudentSessionKey returns the dev authority's login session key.
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// ExamAttemptsKey returns the hash of used attempts per student for an exam.
func (r *CacheKeyStruct) ExamAttemptsKey(examID string) string {
	return fmt.Sprintf("exam:%s:attempts", examID)
}

var CacheKey = NewCacheKeyStruct()
