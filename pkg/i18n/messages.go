package i18n

var messages = map[string]map[string]string{
	"en": {
		"VALIDATION_ERROR":       "The submitted data is invalid.",
		"NOT_FOUND":              "The requested resource was not found.",
		"UNAUTHORIZED":           "Please sign in to continue.",
		"FORBIDDEN":              "You are not allowed to perform this action.",
		"INTERNAL_ERROR":         "An unexpected error occurred. Please try again later.",
		"COURSE_NOT_FOUND":       "The course was not found.",
		"STUDENT_NOT_FOUND":      "The student was not found.",
		"REGISTRATION_NOT_FOUND": "The registration was not found.",
		"PAYMENT_NOT_FOUND":      "The payment was not found.",
		"COURSE_FULL":            "The course is full.",
		"ALREADY_ENROLLED":       "The student is already enrolled in this course.",
		"OVERPAYMENT":            "The paid amount cannot exceed the course total.",
		"INVALID_AMOUNT":         "The amount is invalid.",
		"DUPLICATE_ATTENDANCE":   "Attendance has already been recorded for this date.",
		"NOT_ENROLLED":           "The student is not enrolled in this course.",
		"REGISTRATION_CANCELLED": "This registration has been cancelled.",
		"CERTIFICATE_EXISTS":     "A certificate has already been issued for this course.",
		"COURSE_NOT_COMPLETED":   "The course has not been completed yet.",
		"PAYMENT_REQUIRED":       "The course fees must be paid in full first.",
		"ACCOUNT_EXISTS":         "The student already has an account.",
		"DELETE_NOT_ALLOWED":     "This registration cannot be deleted.",
		"VERSION_CONFLICT":       "The registration was changed by someone else. Reload and try again.",
		"PAYMENT_VOIDED":         "This payment has already been voided.",
	},
	"ar": {
		"VALIDATION_ERROR":       "البيانات المدخلة غير صحيحة",
		"NOT_FOUND":              "العنصر المطلوب غير موجود",
		"UNAUTHORIZED":           "يرجى تسجيل الدخول للمتابعة",
		"FORBIDDEN":              "ليس لديك صلاحية لتنفيذ هذا الإجراء",
		"INTERNAL_ERROR":         "حدث خطأ غير متوقع، يرجى المحاولة لاحقاً",
		"COURSE_NOT_FOUND":       "الكورس غير موجود",
		"STUDENT_NOT_FOUND":      "الطالب غير موجود",
		"REGISTRATION_NOT_FOUND": "التسجيل غير موجود",
		"PAYMENT_NOT_FOUND":      "الدفعة غير موجودة",
		"COURSE_FULL":            "الكورس مكتمل العدد",
		"ALREADY_ENROLLED":       "الطالب مسجل بالفعل في هذا الكورس",
		"OVERPAYMENT":            "المبلغ المدفوع لا يمكن أن يتجاوز المبلغ الإجمالي",
		"INVALID_AMOUNT":         "المبلغ غير صالح",
		"DUPLICATE_ATTENDANCE":   "تم تسجيل الحضور لهذا التاريخ مسبقاً",
		"NOT_ENROLLED":           "الطالب غير مسجل في هذا الكورس",
		"REGISTRATION_CANCELLED": "هذا التسجيل ملغي",
		"CERTIFICATE_EXISTS":     "تم إصدار شهادة لهذا الكورس مسبقاً",
		"COURSE_NOT_COMPLETED":   "الكورس لم يكتمل بعد",
		"PAYMENT_REQUIRED":       "يجب سداد رسوم الكورس بالكامل أولاً",
		"ACCOUNT_EXISTS":         "الطالب لديه حساب بالفعل",
		"DELETE_NOT_ALLOWED":     "لا يمكن حذف هذا التسجيل",
		"VERSION_CONFLICT":       "تم تعديل التسجيل من قبل مستخدم آخر، يرجى إعادة التحميل والمحاولة مجدداً",
		"PAYMENT_VOIDED":         "تم إلغاء هذه الدفعة مسبقاً",
	},
}
