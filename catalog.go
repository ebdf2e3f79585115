package main

import (
	"context"
	"strings"
)

// Category is a fixed editorial section with its own topic list.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryTechnology
	CategoryBusiness
	CategoryAI
	CategoryStartup
	CategorySustainability
	CategoryHealth
	CategoryEducation
	CategoryGaming
)

var categoryNames = map[Category]string{
	CategoryTechnology:     "Technology",
	CategoryBusiness:       "Business",
	CategoryAI:             "AI",
	CategoryStartup:        "Startup",
	CategorySustainability: "Sustainability",
	CategoryHealth:         "Health",
	CategoryEducation:      "Education",
	CategoryGaming:         "Gaming",
}

var categoryTopics = map[Category][]string{
	CategoryTechnology: {
		"Edge Computing", "5G Network Expansion", "Quantum Computing", "Cybersecurity Trends",
		"Cloud Native Development", "Augmented Reality Glasses",
	},
	CategoryBusiness: {
		"Remote Work Economy", "Supply Chain Resilience", "Digital Payments Growth",
		"Creator Economy", "Four Day Work Week",
	},
	CategoryAI: {
		"AI Code Generation", "Large Language Models", "AI Regulation", "Generative AI in Design",
		"AI Agents", "Open Source AI Models",
	},
	CategoryStartup: {
		"Startup Funding Trends", "Y Combinator Demo Day", "Bootstrapped SaaS",
		"Climate Tech Startups", "Fintech Unicorns",
	},
	CategorySustainability: {
		"Solid State Batteries", "Carbon Capture Technology", "Green Hydrogen",
		"Sustainable Fashion", "Electric Vehicle Charging",
	},
	CategoryHealth: {
		"Wearable Health Tech", "Telemedicine Adoption", "AI in Drug Discovery",
		"Mental Health Apps", "Longevity Research",
	},
	CategoryEducation: {
		"AI Tutors", "Online Learning Platforms", "Coding Bootcamps",
		"Microcredentials", "EdTech in Classrooms",
	},
	CategoryGaming: {
		"Cloud Gaming", "Esports Industry", "Handheld Gaming PCs",
		"Indie Game Development", "Virtual Reality Gaming",
	},
}

// randomTopicPool backs GenerateRandom and every unknown category.
var randomTopicPool = []string{
	"AI Code Generation", "Quantum Computing", "Solid State Batteries", "Edge Computing",
	"Space Tourism", "Robotics in Manufacturing", "Smart Cities", "Digital Twins",
	"Brain Computer Interfaces", "Open Source AI Models", "Cloud Gaming", "Wearable Health Tech",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "Unknown"
}

// ParseCategory matches a category name case-insensitively.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for c, name := range categoryNames {
		if strings.EqualFold(name, s) {
			return c, true
		}
	}
	return CategoryUnknown, false
}

// Topics returns the category's list, or the random pool for CategoryUnknown.
func (c Category) Topics() []string {
	if topics, ok := categoryTopics[c]; ok {
		return topics
	}
	return randomTopicPool
}

// TopicsFor resolves a free-form category name to its topic list.
func TopicsFor(category string) []string {
	c, _ := ParseCategory(category)
	return c.Topics()
}

// CatalogTrends reports the curated random pool as trends. It keeps the workflow usable
// when no live trend source is configured. Its topics carry no volume, so they only fill
// slots that live topics leave open.
type CatalogTrends struct{}

func (CatalogTrends) Name() string        { return "catalog" }
func (CatalogTrends) Source() TrendSource { return SourceCatalog }

func (CatalogTrends) FetchTrends(ctx context.Context, region string) ([]TrendingTopic, error) {
	topics := make([]TrendingTopic, 0, len(randomTopicPool))
	for _, kw := range randomTopicPool {
		category := "General"
		for c := CategoryTechnology; c <= CategoryGaming; c++ {
			if containsFold(categoryTopics[c], kw) {
				category = c.String()
				break
			}
		}
		topics = append(topics, TrendingTopic{
			Keyword:  kw,
			Category: category,
			Source:   SourceCatalog,
			Region:   region,
		})
	}
	return topics, nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
