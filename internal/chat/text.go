package chat

// WelcomeText greets a new conversation.
const WelcomeText = "👋 Welcome to the ABIM MCQ Generator!\n" +
	"I am designed to create high-quality, exam-ready multiple-choice questions (MCQs) tailored to your needs, " +
	"complete with answers and detailed explanations.\n\n" +
	"How to Use:\n" +
	"• Request a specific number of MCQs on a topic (e.g., \"Generate 5 MCQs on diabetes\").\n" +
	"• Request a full-length exam (e.g., \"Generate a full exam with 240 MCQs\").\n\n" +
	"Get started now to enhance your preparation with professional, ABIM-style questions!"
