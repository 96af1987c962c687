package directory

import "companion-call-demo/backend/internal/models"

// DefaultCatalog is the built-in companion lineup, in display order.
func DefaultCatalog() []models.CompanionProfile {
	return []models.CompanionProfile{
		{
			ID:          "1",
			Name:        "Alex",
			AvatarURL:   "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=400&h=400&fit=crop&crop=face",
			Description: "A friendly and knowledgeable tutor specializing in mathematics and science.",
			VoiceID:     "voice_alex_001",
			Personality: "Encouraging and patient",
			Specialties: []string{"Mathematics", "Physics", "Chemistry"},
		},
		{
			ID:          "2",
			Name:        "Sofia",
			AvatarURL:   "https://images.unsplash.com/photo-1494790108755-2616b612b786?w=400&h=400&fit=crop&crop=face",
			Description: "An enthusiastic language teacher with expertise in multiple languages.",
			VoiceID:     "voice_sofia_002",
			Personality: "Energetic and creative",
			Specialties: []string{"English", "Spanish", "French", "Literature"},
		},
		{
			ID:          "3",
			Name:        "Marcus",
			AvatarURL:   "https://images.unsplash.com/photo-1472099645785-5658abf4ff4e?w=400&h=400&fit=crop&crop=face",
			Description: "A history and social studies expert with a passion for storytelling.",
			VoiceID:     "voice_marcus_003",
			Personality: "Wise and engaging",
			Specialties: []string{"History", "Social Studies", "Geography", "Political Science"},
		},
		{
			ID:          "4",
			Name:        "Luna",
			AvatarURL:   "https://images.unsplash.com/photo-1438761681033-6461ffad8d80?w=400&h=400&fit=crop&crop=face",
			Description: "A tech-savvy coding instructor with expertise in modern programming languages.",
			VoiceID:     "voice_luna_004",
			Personality: "Analytical and innovative",
			Specialties: []string{"Programming", "Computer Science", "Web Development", "Data Science"},
		},
		{
			ID:          "5",
			Name:        "Dr. Chen",
			AvatarURL:   "https://images.unsplash.com/photo-1612349317150-e413f6a5b16d?w=400&h=400&fit=crop&crop=face",
			Description: "A medical professional and biology expert with extensive teaching experience.",
			VoiceID:     "voice_chen_005",
			Personality: "Precise and caring",
			Specialties: []string{"Biology", "Medicine", "Anatomy", "Health Sciences"},
		},
		{
			ID:          "6",
			Name:        "Emma",
			AvatarURL:   "https://images.unsplash.com/photo-1544005313-94ddf0286df2?w=400&h=400&fit=crop&crop=face",
			Description: "An art and design instructor with a creative approach to learning.",
			VoiceID:     "voice_emma_006",
			Personality: "Creative and inspiring",
			Specialties: []string{"Art", "Design", "Photography", "Creative Writing"},
		},
	}
}
